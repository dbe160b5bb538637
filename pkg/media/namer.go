package media

import (
	"fmt"

	"instacollector/pkg/instagram"
)

// File pairs a deterministic local filename with the remote URL it is
// materialized from. Names are derived purely from the entity id so a
// re-ingested entity maps onto the same files.
type File struct {
	Name string
	URL  string
}

// Files returns the deterministic filename plan for a payload's media.
// Posts yield img_{id}_0.jpg for images, vid_{id}_0.mp4 for videos and
// img_{id}_{n}.jpg per gallery entry starting at index 1; users yield
// pic_{id}.jpg for the profile picture. Payloads without media yield an
// empty plan.
func Files(payload instagram.Payload) []File {
	switch p := payload.(type) {
	case *instagram.UserPayload:
		if p.Picture == "" {
			return nil
		}
		return []File{{Name: fmt.Sprintf("pic_%s.jpg", p.ID), URL: p.Picture}}

	case *instagram.PostPayload:
		return postFiles(p)
	}

	return nil
}

func postFiles(p *instagram.PostPayload) []File {
	switch p.MediaType {
	case instagram.MediaTypeImage:
		if len(p.Images) == 0 {
			return nil
		}
		return []File{{Name: fmt.Sprintf("img_%s_0.jpg", p.ID), URL: p.Images[0].URL}}

	case instagram.MediaTypeVideo:
		if len(p.Videos) == 0 {
			return nil
		}
		return []File{{Name: fmt.Sprintf("vid_%s_0.mp4", p.ID), URL: p.Videos[0].URL}}

	case instagram.MediaTypeGallery:
		// Gallery names start at 1, skipping the lead entry.
		var files []File
		for i := 1; i < len(p.Images); i++ {
			files = append(files, File{
				Name: fmt.Sprintf("img_%s_%d.jpg", p.ID, i),
				URL:  p.Images[i].URL,
			})
		}
		return files
	}

	return nil
}

// Names extracts just the filenames from a plan.
func Names(files []File) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}
