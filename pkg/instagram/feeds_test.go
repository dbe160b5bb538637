package instagram

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserMediaFeedPagination(t *testing.T) {
	pages := map[string]string{
		"": `{"status":"ok","more_available":true,"next_max_id":"p2","items":[
			{"pk":1,"media_type":1,"image_versions2":{"candidates":[{"url":"http://cdn/1.jpg"}]}},
			{"pk":2,"media_type":1,"image_versions2":{"candidates":[{"url":"http://cdn/2.jpg"}]}}
		]}`,
		"p2": `{"status":"ok","more_available":false,"next_max_id":"","items":[
			{"pk":3,"media_type":2,"video_versions":[{"url":"http://cdn/3.mp4"}]}
		]}`,
	}

	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pages[r.URL.Query().Get("max_id")])
	}))

	feed := NewUserMediaFeed(session, "42")
	assert.True(t, feed.MoreAvailable())

	page1, err := feed.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "1", page1[0].EntityID())
	assert.True(t, feed.MoreAvailable())

	page2, err := feed.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "3", page2[0].EntityID())
	assert.False(t, feed.MoreAvailable())
}

func TestUserMediaFeedCursorHoldsOnError(t *testing.T) {
	attempts := 0
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("max_id") == "" && attempts == 0 {
			attempts++
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"status":"ok","more_available":false,"items":[
			{"pk":7,"media_type":1,"image_versions2":{"candidates":[{"url":"http://cdn/7.jpg"}]}}
		]}`)
	}))

	feed := NewUserMediaFeed(session, "42")

	// First fetch fails; the cursor must not advance.
	_, err := feed.Next(context.Background())
	require.Error(t, err)
	assert.True(t, feed.MoreAvailable())

	// Retry fetches the same page and succeeds.
	items, err := feed.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "7", items[0].EntityID())
}

func TestUserMediaFeedPrivateEnvelope(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"fail","message":"Not authorized to view user"}`)
	}))

	feed := NewUserMediaFeed(session, "42")
	_, err := feed.Next(context.Background())
	require.Error(t, err)
}

func TestFollowerFeedPagination(t *testing.T) {
	pages := map[string]string{
		"": `{"status":"ok","next_max_id":"cursor2","users":[
			{"pk":100,"username":"alpha","is_private":false,"profile_pic_url":"http://cdn/a.jpg"},
			{"pk":101,"username":"beta","is_private":true}
		]}`,
		"cursor2": `{"status":"ok","next_max_id":"","users":[
			{"pk":102,"username":"gamma"}
		]}`,
	}

	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pages[r.URL.Query().Get("max_id")])
	}))

	feed := NewFollowerFeed(session, "9")

	page1, err := feed.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "100", page1[0].EntityID())
	assert.False(t, page1[0].Private())
	assert.True(t, page1[1].Private())
	assert.True(t, feed.MoreAvailable())

	page2, err := feed.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.False(t, feed.MoreAvailable())
}

func TestHashtagFeedMapsItems(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok","more_available":false,"items":[
			{"pk":5,"media_type":8,"caption":{"text":"sunset"},"carousel_media":[
				{"pk":51,"media_type":1,"image_versions2":{"candidates":[{"url":"http://cdn/51.jpg"}]}},
				{"pk":52,"media_type":1,"image_versions2":{"candidates":[{"url":"http://cdn/52.jpg"}]}}
			]}
		]}`)
	}))

	feed := NewHashtagFeed(session, "sunset")
	items, err := feed.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	post, ok := items[0].(*PostPayload)
	require.True(t, ok)
	assert.Equal(t, MediaTypeGallery, post.MediaType)
	assert.Equal(t, "sunset", post.Caption)
	require.Len(t, post.Images, 2)
	assert.Equal(t, "http://cdn/51.jpg", post.Images[0].URL)
}

func TestLocationFeedMapsItems(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok","more_available":false,"items":[
			{"pk":6,"media_type":2,"video_versions":[{"url":"http://cdn/6.mp4","width":720,"height":1280}],
			 "image_versions2":{"candidates":[{"url":"http://cdn/6-cover.jpg"}]}}
		]}`)
	}))

	feed := NewLocationFeed(session, "4004")
	items, err := feed.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	post := items[0].(*PostPayload)
	assert.Equal(t, MediaTypeVideo, post.MediaType)
	require.Len(t, post.Videos, 1)
	assert.Equal(t, 720, post.Videos[0].Width)
	// The cover frame rides along as an image rendition.
	require.Len(t, post.Images, 1)
}
