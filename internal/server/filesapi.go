// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// FILE WORKSPACE
// =============================================================================

// allowedExtensions is the upload allow-list.
var allowedExtensions = map[string]bool{
	"txt": true, "pdf": true, "doc": true, "docx": true, "xls": true,
	"xlsx": true, "ppt": true, "pptx": true, "csv": true, "json": true,
	"xml": true, "md": true, "py": true, "js": true, "html": true,
	"css": true, "jpg": true, "jpeg": true, "png": true, "gif": true,
	"svg": true, "webp": true, "mp4": true, "avi": true, "mov": true,
	"wmv": true, "mp3": true, "wav": true, "ogg": true,
}

var iconByExtension = map[string]string{
	"pdf": "file-text", "doc": "file-text", "docx": "file-text",
	"txt": "file-text", "md": "file-text",
	"xls": "file-spreadsheet", "xlsx": "file-spreadsheet", "csv": "file-spreadsheet",
	"ppt": "file-presentation", "pptx": "file-presentation",
	"jpg": "image", "jpeg": "image", "png": "image", "gif": "image",
	"svg": "image", "webp": "image",
	"mp4": "video", "avi": "video", "mov": "video", "wmv": "video",
	"mp3": "music", "wav": "music", "ogg": "music",
	"py": "code", "js": "code", "html": "code", "css": "code",
	"json": "code", "xml": "code",
}

var errUnsafePath = errors.New("server: path escapes workspace")

// Workspace is the upload directory the file API operates in. Every
// path from the wire is resolved inside the root; traversal out of it
// is rejected.
type Workspace struct {
	root     string
	maxBytes int64
}

// NewWorkspace creates the workspace, making the root if needed.
func NewWorkspace(root string, maxBytes int64) (*Workspace, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Workspace{root: abs, maxBytes: maxBytes}, nil
}

// Root returns the workspace root directory.
func (ws *Workspace) Root() string { return ws.root }

// resolve maps a wire path into the workspace, rejecting traversal.
func (ws *Workspace) resolve(rel string) (string, error) {
	clean := path.Clean("/" + rel)
	full := filepath.Join(ws.root, filepath.FromSlash(clean))
	if full != ws.root && !strings.HasPrefix(full, ws.root+string(filepath.Separator)) {
		return "", errUnsafePath
	}
	return full, nil
}

func (ws *Workspace) relPath(full string) string {
	rel, err := filepath.Rel(ws.root, full)
	if err != nil {
		return ""
	}
	return filepath.ToSlash(rel)
}

func extension(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return ext
}

func allowedFile(name string) bool {
	return allowedExtensions[extension(name)]
}

func fileIcon(name string) string {
	if icon, ok := iconByExtension[extension(name)]; ok {
		return icon
	}
	return "file"
}

// sanitizeName keeps a bare, safe file name: path separators and
// leading dots are stripped.
func sanitizeName(name string) string {
	name = filepath.Base(filepath.ToSlash(name))
	name = strings.TrimLeft(name, ".")
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	return strings.TrimSpace(name)
}

// entryInfo describes one file or folder for the wire.
type entryInfo struct {
	Name              string `json:"name"`
	Path              string `json:"path"`
	Size              int64  `json:"size,omitempty"`
	SizeFormatted     string `json:"size_formatted,omitempty"`
	Modified          string `json:"modified,omitempty"`
	ModifiedFormatted string `json:"modified_formatted,omitempty"`
	Type              string `json:"type"`
	Icon              string `json:"icon"`
	MimeType          string `json:"mime_type,omitempty"`
	ChildrenCount     int    `json:"children_count,omitempty"`
}

func (ws *Workspace) fileInfo(full string, info os.FileInfo) entryInfo {
	mimeType := mime.TypeByExtension(filepath.Ext(full))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return entryInfo{
		Name:              info.Name(),
		Path:              ws.relPath(full),
		Size:              info.Size(),
		SizeFormatted:     formatFileSize(info.Size()),
		Modified:          info.ModTime().Format(time.RFC3339),
		ModifiedFormatted: info.ModTime().Format("2006-01-02 15:04"),
		Type:              "file",
		Icon:              fileIcon(info.Name()),
		MimeType:          mimeType,
	}
}

func (ws *Workspace) folderInfo(full string, info os.FileInfo) entryInfo {
	children, _ := os.ReadDir(full)
	return entryInfo{
		Name:              info.Name(),
		Path:              ws.relPath(full),
		Modified:          info.ModTime().Format(time.RFC3339),
		ModifiedFormatted: info.ModTime().Format("2006-01-02 15:04"),
		Type:              "folder",
		Icon:              "folder",
		ChildrenCount:     len(children),
	}
}

func formatFileSize(size int64) string {
	if size <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	f := float64(size)
	i := 0
	for f >= 1024 && i < len(units)-1 {
		f /= 1024
		i++
	}
	if i == 0 {
		return strconv.FormatInt(size, 10) + " B"
	}
	return strconv.FormatFloat(f, 'f', 1, 64) + " " + units[i]
}

// =============================================================================
// HANDLERS
// =============================================================================

// handleFilesList handles GET /api/files?path=.
func (s *Server) handleFilesList(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	full, err := s.workspace.resolve(rel)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid path")
		return
	}

	info, err := os.Stat(full)
	if err != nil || !info.IsDir() {
		s.writeError(w, http.StatusNotFound, "Directory not found")
		return
	}

	dirents, err := os.ReadDir(full)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list directory")
		return
	}

	sort.Slice(dirents, func(i, j int) bool { return dirents[i].Name() < dirents[j].Name() })

	// Folders first, then files, each alphabetical.
	items := make([]entryInfo, 0, len(dirents))
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		if fi, err := d.Info(); err == nil {
			items = append(items, s.workspace.folderInfo(filepath.Join(full, d.Name()), fi))
		}
	}
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		if fi, err := d.Info(); err == nil {
			items = append(items, s.workspace.fileInfo(filepath.Join(full, d.Name()), fi))
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"path":        rel,
		"files":       items,
		"total_count": len(items),
	})
}

// handleFilesUpload handles POST /api/files/upload (multipart).
func (s *Server) handleFilesUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.workspace.maxBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid upload")
		return
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	defer file.Close()

	name := sanitizeName(hdr.Filename)
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if !allowedFile(name) {
		s.writeError(w, http.StatusBadRequest, "File type not allowed")
		return
	}
	if hdr.Size > s.workspace.maxBytes {
		s.writeError(w, http.StatusBadRequest,
			"File too large. Max size: "+formatFileSize(s.workspace.maxBytes))
		return
	}

	dir, err := s.workspace.resolve(r.FormValue("path"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid path")
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	// Duplicate names get a numeric suffix.
	target := filepath.Join(dir, name)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	ext := filepath.Ext(name)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			break
		}
		target = filepath.Join(dir, base+"_"+strconv.Itoa(counter)+ext)
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(target)
		s.writeError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}
	out.Close()

	s.recordUpload(r.Context())
	s.stale() // uploads invalidate the document index

	info, err := os.Stat(target)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "File uploaded successfully",
		"file":    s.workspace.fileInfo(target, info),
	})
}

// handleFileContent handles GET /api/files/{path}/content.
func (s *Server) handleFileContent(w http.ResponseWriter, r *http.Request) {
	rel, ok := s.wirePath(w, r)
	if !ok {
		return
	}
	full, err := s.workspace.resolve(rel)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid path")
		return
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		s.writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if info.Size() > 1<<20 {
		s.writeError(w, http.StatusBadRequest, "File too large for preview")
		return
	}

	mimeType := mime.TypeByExtension(filepath.Ext(full))
	if !strings.HasPrefix(mimeType, "text/") {
		s.writeError(w, http.StatusBadRequest, "File type not supported for preview")
		return
	}

	data, err := os.ReadFile(full)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"content":   string(data),
		"mime_type": mimeType,
		"file":      s.workspace.fileInfo(full, info),
	})
}

// handleFileRename handles POST /api/files/{path}/rename.
func (s *Server) handleFileRename(w http.ResponseWriter, r *http.Request) {
	rel, ok := s.wirePath(w, r)
	if !ok {
		return
	}
	var body struct {
		NewName string `json:"new_name"`
	}
	if !s.readJSON(w, r, &body) {
		return
	}

	newName := sanitizeName(body.NewName)
	if newName == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid name")
		return
	}

	old, err := s.workspace.resolve(rel)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid path")
		return
	}
	info, err := os.Stat(old)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Item not found")
		return
	}

	next := filepath.Join(filepath.Dir(old), newName)
	if _, err := os.Stat(next); err == nil {
		s.writeError(w, http.StatusConflict, "Item with this name already exists")
		return
	}
	if err := os.Rename(old, next); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to rename item")
		return
	}
	s.stale()

	info, err = os.Stat(next)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to rename item")
		return
	}
	var item entryInfo
	if info.IsDir() {
		item = s.workspace.folderInfo(next, info)
	} else {
		item = s.workspace.fileInfo(next, info)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Item renamed successfully",
		"item":    item,
	})
}

// handleFileDelete handles DELETE /api/files/{path}.
func (s *Server) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	rel, ok := s.wirePath(w, r)
	if !ok {
		return
	}
	full, err := s.workspace.resolve(rel)
	if err != nil || full == s.workspace.root {
		s.writeError(w, http.StatusBadRequest, "Invalid path")
		return
	}
	if _, err := os.Stat(full); err != nil {
		s.writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	if err := os.RemoveAll(full); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to delete item")
		return
	}
	s.stale()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Item deleted successfully",
	})
}

// handleBulkDelete handles POST /api/files/bulk-delete.
func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Files []string `json:"files"`
	}
	if !s.readJSON(w, r, &body) {
		return
	}

	var deleted []string
	for _, rel := range body.Files {
		full, err := s.workspace.resolve(rel)
		if err != nil || full == s.workspace.root {
			continue
		}
		if _, err := os.Stat(full); err != nil {
			continue
		}
		if err := os.RemoveAll(full); err == nil {
			deleted = append(deleted, rel)
		}
	}
	s.stale()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"deleted_files": deleted,
		"message":       "Deleted " + strconv.Itoa(len(deleted)) + " items",
	})
}

// handleFilesCopy handles POST /api/files/copy; handleFilesMove
// handles POST /api/files/move.
func (s *Server) handleFilesCopy(w http.ResponseWriter, r *http.Request) {
	s.transferFiles(w, r, false)
}

func (s *Server) handleFilesMove(w http.ResponseWriter, r *http.Request) {
	s.transferFiles(w, r, true)
}

func (s *Server) transferFiles(w http.ResponseWriter, r *http.Request, move bool) {
	var body struct {
		Files       []string `json:"files"`
		Destination string   `json:"destination"`
	}
	if !s.readJSON(w, r, &body) {
		return
	}

	destDir, err := s.workspace.resolve(body.Destination)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid path")
		return
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to prepare destination")
		return
	}

	var transferred []string
	for _, rel := range body.Files {
		src, err := s.workspace.resolve(rel)
		if err != nil {
			continue
		}
		info, err := os.Stat(src)
		if err != nil || info.IsDir() {
			continue
		}

		target := filepath.Join(destDir, info.Name())
		base := strings.TrimSuffix(info.Name(), filepath.Ext(info.Name()))
		ext := filepath.Ext(info.Name())
		for counter := 1; ; counter++ {
			if _, err := os.Stat(target); os.IsNotExist(err) {
				break
			}
			suffix := "_" + strconv.Itoa(counter)
			if !move {
				suffix = "_copy_" + strconv.Itoa(counter)
			}
			target = filepath.Join(destDir, base+suffix+ext)
		}

		if move {
			if err := os.Rename(src, target); err != nil {
				continue
			}
		} else {
			if err := copyFile(src, target); err != nil {
				continue
			}
		}
		transferred = append(transferred, s.workspace.relPath(target))
	}
	s.stale()

	verb, key := "Copied", "copied_files"
	if move {
		verb, key = "Moved", "moved_files"
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		key:       transferred,
		"message": verb + " " + strconv.Itoa(len(transferred)) + " items",
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// handleCreateFolder handles POST /api/files/folder.
func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path       string `json:"path"`
		FolderName string `json:"folder_name"`
	}
	if !s.readJSON(w, r, &body) {
		return
	}

	name := sanitizeName(body.FolderName)
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid folder name")
		return
	}

	parent, err := s.workspace.resolve(body.Path)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid path")
		return
	}
	full := filepath.Join(parent, name)
	if _, err := os.Stat(full); err == nil {
		s.writeError(w, http.StatusConflict, "Folder already exists")
		return
	}
	if err := os.MkdirAll(full, 0755); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to create folder")
		return
	}

	info, err := os.Stat(full)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to create folder")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Folder created successfully",
		"folder":  s.workspace.folderInfo(full, info),
	})
}

// wirePath extracts and unescapes the {path} segment of a file route.
func (s *Server) wirePath(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.PathValue("path")
	rel, err := url.PathUnescape(raw)
	if err != nil || rel == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid path")
		return "", false
	}
	return rel, true
}
