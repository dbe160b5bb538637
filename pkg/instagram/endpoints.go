package instagram

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	// BaseURL is the base URL for the Instagram private API
	BaseURL = "https://i.instagram.com"

	// DefaultPageSize is the item count requested per feed page
	DefaultPageSize = 50
)

// userMediaPath returns the endpoint path for a user's timeline feed
func userMediaPath(userID string) string {
	return fmt.Sprintf("/api/v1/feed/user/%s/", url.PathEscape(userID))
}

// followersPath returns the endpoint path for an account's follower list
func followersPath(userID string) string {
	return fmt.Sprintf("/api/v1/friendships/%s/followers/", url.PathEscape(userID))
}

// hashtagPath returns the endpoint path for a hashtag feed
func hashtagPath(tag string) string {
	return fmt.Sprintf("/api/v1/feed/tag/%s/", url.PathEscape(tag))
}

// locationPath returns the endpoint path for a location feed
func locationPath(locationID string) string {
	return fmt.Sprintf("/api/v1/feed/location/%s/", url.PathEscape(locationID))
}

// userSearchPath returns the endpoint path for resolving a username
func userSearchPath(query string) string {
	params := url.Values{}
	params.Set("q", query)
	return "/api/v1/users/search/?" + params.Encode()
}

// placeSearchPath returns the endpoint path for resolving a location query
func placeSearchPath(query string) string {
	params := url.Values{}
	params.Set("query", query)
	return "/api/v1/fbsearch/places/?" + params.Encode()
}

// pagedPath appends the page size and pagination cursor to an
// endpoint path
func pagedPath(path, maxID string) string {
	params := url.Values{}
	params.Set("count", strconv.Itoa(DefaultPageSize))
	if maxID != "" {
		params.Set("max_id", maxID)
	}
	sep := "?"
	if containsQuery(path) {
		sep = "&"
	}
	return path + sep + params.Encode()
}

func containsQuery(path string) bool {
	for _, c := range path {
		if c == '?' {
			return true
		}
	}
	return false
}

// SanitizeUsername removes a leading @ and trailing slashes or spaces
// from a user-supplied handle.
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}

	if username[0] == '@' {
		username = username[1:]
	}

	for len(username) > 0 && (username[len(username)-1] == '/' || username[len(username)-1] == ' ') {
		username = username[:len(username)-1]
	}

	return username
}
