// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// AttachmentFromFile builds a descriptor for the file at path. The MIME type
// comes from the extension, falling back to content sniffing.
func AttachmentFromFile(path string) (Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("attach %s: %w", path, err)
	}
	if info.IsDir() {
		return Attachment{}, &ValidationError{Field: "file", Message: path + " is a directory"}
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType, err = sniffMIME(path)
		if err != nil {
			return Attachment{}, fmt.Errorf("attach %s: %w", path, err)
		}
	}

	return Attachment{
		Name:     filepath.Base(path),
		Size:     info.Size(),
		MimeType: mimeType,
	}, nil
}

func sniffMIME(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
