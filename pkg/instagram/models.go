package instagram

import "encoding/json"

// MediaType discriminates the media shape of a post payload. The values
// match what the upstream API emits.
type MediaType int

const (
	MediaTypeImage   MediaType = 1
	MediaTypeVideo   MediaType = 2
	MediaTypeGallery MediaType = 8
)

// Payload is one normalized feed item: either a user or a post. The id
// is stable across fetches and unique within its collection.
type Payload interface {
	EntityID() string
	Private() bool
}

// MediaVersion is one downloadable rendition of an image or video.
type MediaVersion struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// UserPayload is the canonical parameter payload of a user feed item.
type UserPayload struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name,omitempty"`
	IsPrivate bool   `json:"is_private"`
	// Picture is the profile picture URL, materialized as pic_{id}.jpg
	Picture string `json:"picture,omitempty"`
}

func (u *UserPayload) EntityID() string { return u.ID }
func (u *UserPayload) Private() bool    { return u.IsPrivate }

// PostPayload is the canonical parameter payload of a post feed item.
// For galleries Images holds one rendition per gallery entry.
type PostPayload struct {
	ID        string         `json:"id"`
	Code      string         `json:"code,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	MediaType MediaType      `json:"media_type"`
	Images    []MediaVersion `json:"images,omitempty"`
	Videos    []MediaVersion `json:"videos,omitempty"`
	Caption   string         `json:"caption,omitempty"`
	TakenAt   int64          `json:"taken_at,omitempty"`
	LikeCount int            `json:"like_count,omitempty"`
}

func (p *PostPayload) EntityID() string { return p.ID }
func (p *PostPayload) Private() bool    { return false }

// Location is a resolved location search result.
type Location struct {
	ID   string
	Name string
}

// Wire-level response shapes. These stay private to the package; feeds
// map them to payloads before handing items to the collector.

type apiUser struct {
	PK            json.Number `json:"pk"`
	Username      string      `json:"username"`
	FullName      string      `json:"full_name"`
	IsPrivate     bool        `json:"is_private"`
	ProfilePicURL string      `json:"profile_pic_url"`
}

func (u apiUser) payload() *UserPayload {
	return &UserPayload{
		ID:        u.PK.String(),
		Username:  u.Username,
		FullName:  u.FullName,
		IsPrivate: u.IsPrivate,
		Picture:   u.ProfilePicURL,
	}
}

type apiVersion struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type apiItem struct {
	PK             json.Number `json:"pk"`
	Code           string      `json:"code"`
	MediaType      int         `json:"media_type"`
	TakenAt        int64       `json:"taken_at"`
	LikeCount      int         `json:"like_count"`
	ImageVersions2 struct {
		Candidates []apiVersion `json:"candidates"`
	} `json:"image_versions2"`
	VideoVersions []apiVersion `json:"video_versions"`
	CarouselMedia []apiItem    `json:"carousel_media"`
	Caption       *struct {
		Text string `json:"text"`
	} `json:"caption"`
	User apiUser `json:"user"`
}

func (i apiItem) payload() *PostPayload {
	p := &PostPayload{
		ID:        i.PK.String(),
		Code:      i.Code,
		UserID:    i.User.PK.String(),
		MediaType: MediaType(i.MediaType),
		TakenAt:   i.TakenAt,
		LikeCount: i.LikeCount,
	}
	if i.Caption != nil {
		p.Caption = i.Caption.Text
	}

	switch p.MediaType {
	case MediaTypeGallery:
		// One rendition per gallery entry, best candidate first.
		for _, entry := range i.CarouselMedia {
			if len(entry.ImageVersions2.Candidates) > 0 {
				c := entry.ImageVersions2.Candidates[0]
				p.Images = append(p.Images, MediaVersion{URL: c.URL, Width: c.Width, Height: c.Height})
			}
		}
	case MediaTypeVideo:
		for _, v := range i.VideoVersions {
			p.Videos = append(p.Videos, MediaVersion{URL: v.URL, Width: v.Width, Height: v.Height})
		}
		fallthrough
	default:
		for _, c := range i.ImageVersions2.Candidates {
			p.Images = append(p.Images, MediaVersion{URL: c.URL, Width: c.Width, Height: c.Height})
		}
	}

	return p
}

type feedResponse struct {
	Status        string    `json:"status"`
	Message       string    `json:"message"`
	Items         []apiItem `json:"items"`
	NextMaxID     string    `json:"next_max_id"`
	MoreAvailable bool      `json:"more_available"`
}

type followersResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Users     []apiUser `json:"users"`
	NextMaxID string    `json:"next_max_id"`
}

type userSearchResponse struct {
	Status string    `json:"status"`
	Users  []apiUser `json:"users"`
}

type placeSearchResponse struct {
	Status string `json:"status"`
	Items  []struct {
		Location struct {
			PK   json.Number `json:"pk"`
			Name string      `json:"name"`
		} `json:"location"`
	} `json:"items"`
}
