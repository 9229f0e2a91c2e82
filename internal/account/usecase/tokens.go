package usecase

import (
	accountdomain "mailsync-backend/internal/account/domain"
	"mailsync-backend/pkg/gmail"

	"golang.org/x/oauth2"
)

func credentialsOf(a *accountdomain.GmailAccount) gmail.Credentials {
	return gmail.Credentials{
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		Expiry:       a.TokenExpiry,
	}
}

func captureToken(a *accountdomain.GmailAccount) gmail.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		a.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			a.RefreshToken = token.RefreshToken
		}
		a.TokenExpiry = token.Expiry
		return nil
	}
}
