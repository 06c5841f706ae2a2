package deezer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gsarma/botkit/internal/bot"
	"github.com/gsarma/botkit/internal/jobs"
	"github.com/gsarma/botkit/internal/models"
)

// APIError is an error Deezer reports inside an HTTP 200 body.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("deezer: %s (code %d): %s", e.Type, e.Code, e.Message)
}

// MeRequest describes GET /user/me.
func MeRequest() bot.Request {
	return bot.Request{
		Method: http.MethodGet,
		Path:   "/user/me",
		Model:  ModelUser,
		Scopes: []string{"basic_access"},
	}
}

// Me returns the profile of the token's owner.
func Me(ctx context.Context, c *bot.Client) (*models.User, error) {
	v, err := c.Do(ctx, MeRequest())
	if err != nil {
		return nil, err
	}
	u, ok := v.(*models.User)
	if !ok {
		return nil, fmt.Errorf("deezer: user/me decoded to %T", v)
	}
	return u, nil
}

// Jobs returns the jobs runnable against a Deezer client.
func Jobs() *jobs.Registry {
	r := jobs.NewRegistry()
	r.Register("me", func(ctx context.Context, c *bot.Client, _ []string) (any, error) {
		u, err := Me(ctx, c)
		if err != nil {
			return nil, err
		}
		return u, nil
	})
	return r
}
