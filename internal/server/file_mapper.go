package server

import (
	"fstore/internal/api"
	"fstore/internal/models"
)

func toFileResponse(view models.FileView) api.FileResponse {
	tags := view.Tags
	if tags == nil {
		tags = []string{}
	}
	return api.FileResponse{
		ID:           view.ID,
		Filename:     view.Filename,
		OwnerID:      view.OwnerID,
		Visibility:   string(view.Visibility),
		Tags:         tags,
		ContentType:  view.ContentType,
		DetectedType: view.DetectedType,
		Size:         view.SizeBytes,
		ContentHash:  view.ContentHash,
		UploadedAt:   view.UploadedAt,
		PublicToken:  view.PublicToken,
		DownloadLink: view.DownloadLink,
	}
}

func toFileResponses(views []models.FileView) []api.FileResponse {
	out := make([]api.FileResponse, 0, len(views))
	for _, view := range views {
		out = append(out, toFileResponse(view))
	}
	return out
}
