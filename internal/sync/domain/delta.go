package domain

// LabelChange is the net label delta of one message within a history range.
type LabelChange struct {
	Added   []string
	Removed []string
}

// HistoryDelta accumulates a history range into added, deleted and
// label-changed ids. Membership is a set union; slices keep first-seen order.
type HistoryDelta struct {
	Added        []string
	Deleted      []string
	LabelChanges map[string]*LabelChange
	// LabelOrder lists LabelChanges keys in first-seen order.
	LabelOrder []string

	added   map[string]bool
	deleted map[string]bool
}

func NewHistoryDelta() *HistoryDelta {
	return &HistoryDelta{
		LabelChanges: map[string]*LabelChange{},
		added:        map[string]bool{},
		deleted:      map[string]bool{},
	}
}

func (d *HistoryDelta) AddAdded(id string) {
	if id == "" || d.added[id] {
		return
	}
	d.added[id] = true
	d.Added = append(d.Added, id)
}

func (d *HistoryDelta) AddDeleted(id string) {
	if id == "" || d.deleted[id] {
		return
	}
	d.deleted[id] = true
	d.Deleted = append(d.Deleted, id)
}

func (d *HistoryDelta) AddLabels(id string, added, removed []string) {
	if id == "" {
		return
	}
	change, ok := d.LabelChanges[id]
	if !ok {
		change = &LabelChange{}
		d.LabelChanges[id] = change
		d.LabelOrder = append(d.LabelOrder, id)
	}
	change.Added = appendUnique(change.Added, added...)
	change.Removed = appendUnique(change.Removed, removed...)
}

func (d *HistoryDelta) IsDeleted(id string) bool { return d.deleted[id] }

func (d *HistoryDelta) IsAdded(id string) bool { return d.added[id] }

func (d *HistoryDelta) Empty() bool {
	return len(d.Added) == 0 && len(d.Deleted) == 0 && len(d.LabelChanges) == 0
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range dst {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
