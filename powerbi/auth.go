// ABOUTME: Client-credentials token exchange against the Microsoft identity platform.
// ABOUTME: Produces the single bearer token a Client uses for its whole lifetime.

package powerbi

import (
	"context"
	"errors"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultScope is the Power BI service's default application scope.
const DefaultScope = "https://analysis.windows.net/powerbi/api/.default"

func (c *Client) tokenURL() string {
	return c.authorityURL + "/" + url.PathEscape(c.creds.TenantID) + "/oauth2/v2.0/token"
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	cfg := clientcredentials.Config{
		ClientID:     c.creds.ClientID,
		ClientSecret: c.creds.ClientSecret,
		TokenURL:     c.tokenURL(),
		Scopes:       []string{DefaultScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := cfg.Token(ctx)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			authErr := &AuthError{Body: string(re.Body), Err: err}
			if re.Response != nil {
				authErr.StatusCode = re.Response.StatusCode
			}
			return "", authErr
		}
		return "", &AuthError{Err: err}
	}

	return token.AccessToken, nil
}
