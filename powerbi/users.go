// ABOUTME: Lists who has access to a report or an app (admin API).
// ABOUTME: ShortUsers reduces entries to name, email and access right.

package powerbi

import "context"

type User struct {
	DisplayName           string `json:"displayName"`
	EmailAddress          string `json:"emailAddress"`
	AppUserAccessRight    string `json:"appUserAccessRight"`
	ReportUserAccessRight string `json:"reportUserAccessRight"`
	Identifier            string `json:"identifier"`
	GraphID               string `json:"graphId"`
	PrincipalType         string `json:"principalType"`
	UserType              string `json:"userType"`
}

type UserAccess struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Rights string `json:"rights"`
}

func (c *Client) ReportUsers(ctx context.Context, reportID string) ([]User, error) {
	return getCollection[User](ctx, c, "retrieve report users", joinPath("admin", "reports", reportID, "users"))
}

func (c *Client) AppUsers(ctx context.Context, appID string) ([]User, error) {
	return getCollection[User](ctx, c, "retrieve app users", joinPath("admin", "apps", appID, "users"))
}

// ReportUsersRaw returns the report users response body exactly as the API sent it.
func (c *Client) ReportUsersRaw(ctx context.Context, reportID string) ([]byte, error) {
	return c.getRaw(ctx, "retrieve report users", joinPath("admin", "reports", reportID, "users"))
}

// AppUsersRaw returns the app users response body exactly as the API sent it.
func (c *Client) AppUsersRaw(ctx context.Context, appID string) ([]byte, error) {
	return c.getRaw(ctx, "retrieve app users", joinPath("admin", "apps", appID, "users"))
}

// AccessRight is the app access right of the entry, or its report access
// right for report-user entries.
func (u User) AccessRight() string {
	if u.AppUserAccessRight != "" {
		return u.AppUserAccessRight
	}
	return u.ReportUserAccessRight
}

// ShortUsers keeps name, email and the access right of each entry.
func ShortUsers(users []User) []UserAccess {
	short := make([]UserAccess, 0, len(users))
	for _, u := range users {
		short = append(short, UserAccess{
			Name:   u.DisplayName,
			Email:  u.EmailAddress,
			Rights: u.AccessRight(),
		})
	}
	return short
}
