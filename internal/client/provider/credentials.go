package provider

import (
	"context"

	"github.com/mcoot/playerhub/internal/model"
)

// CodeNotSignedIn is the AuthFailure code when no provider token is available
const CodeNotSignedIn = "NOT_SIGNED_IN"

// StaticCredentials serves a token obtained out of band, e.g. from a flag or environment variable
type StaticCredentials struct {
	Token string
}

func (c StaticCredentials) IsAuthenticated(context.Context) bool {
	return c.Token != ""
}

func (c StaticCredentials) Login(context.Context) (string, error) {
	if c.Token == "" {
		return "", &model.AuthFailure{Code: CodeNotSignedIn, Message: "no provider access token available"}
	}
	return c.Token, nil
}
