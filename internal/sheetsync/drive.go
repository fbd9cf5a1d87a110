package sheetsync

import (
	"bytes"
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// DriveUploader stores images in Google Drive and shares them publicly.
type DriveUploader struct {
	svc      *drive.Service
	folderID string
}

// NewDriveUploader uploads into folderID, or the drive root when empty.
func NewDriveUploader(svc *drive.Service, folderID string) *DriveUploader {
	return &DriveUploader{svc: svc, folderID: folderID}
}

// Upload creates the file, grants anyone read access and returns a direct
// link usable by IMAGE().
func (d *DriveUploader) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	meta := &drive.File{Name: name, MimeType: contentType}
	if d.folderID != "" {
		meta.Parents = []string{d.folderID}
	}
	f, err := d.svc.Files.Create(meta).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive upload %s: %w", name, err)
	}

	_, err = d.svc.Permissions.Create(f.Id, &drive.Permission{Role: "reader", Type: "anyone"}).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive share %s: %w", f.Id, err)
	}
	return DriveLink(f.Id), nil
}

// DriveLink is the direct-download address for a shared file.
func DriveLink(fileID string) string {
	return "https://drive.google.com/uc?id=" + fileID
}
