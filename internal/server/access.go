package server

import "fstore/internal/models"

// canDownload allows owners, and anyone for PUBLIC records.
func canDownload(record *models.FileRecord, requesterID string) bool {
	if record == nil {
		return false
	}
	if record.Visibility == models.VisibilityPublic {
		return true
	}
	return requesterID != "" && record.OwnerID == requesterID
}

// canMutate allows only the owner to rename or delete.
func canMutate(record *models.FileRecord, requesterID string) bool {
	return record != nil && requesterID != "" && record.OwnerID == requesterID
}
