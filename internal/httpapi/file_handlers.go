package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jkaninda/okapi"

	"github.com/sportscouncil/backoffice/internal/credentials"
	"github.com/sportscouncil/backoffice/internal/objectstore"
)

func (s *Server) fileRoutes() {
	s.group.Post("/files", s.handleFileUpload,
		okapi.DocSummary("Upload a file to the council bucket"),
		okapi.DocTags("Files"),
		okapi.DocResponse(objectstore.UploadResult{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusBadGateway, objectstore.UploadResult{}),
	)
	s.group.Get("/files", s.handleFileList,
		okapi.DocSummary("List files under a prefix"),
		okapi.DocTags("Files"),
		okapi.DocResponse(objectstore.ListResult{}),
		okapi.DocResponse(http.StatusBadGateway, objectstore.ListResult{}),
	)
	s.group.Delete("/files", s.handleFileDelete,
		okapi.DocSummary("Delete a file by object path"),
		okapi.DocTags("Files"),
		okapi.DocResponse(credentials.Outcome{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusBadGateway, credentials.Outcome{}),
	)
	s.group.Get("/files/signed-url", s.handleSignedURL,
		okapi.DocSummary("Create a time-limited download URL"),
		okapi.DocTags("Files"),
		okapi.DocResponse(objectstore.SignedURLResult{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusBadGateway, objectstore.SignedURLResult{}),
	)
}

func (s *Server) handleFileUpload(c *okapi.Context) error {
	r := c.Request()
	r.Body = http.MaxBytesReader(nil, r.Body, s.config.maxRequestSize())

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return c.JSON(http.StatusRequestEntityTooLarge, ErrorBody{Error: "file exceeds the upload limit"})
		}
		return c.AbortBadRequest("multipart field \"file\" is required")
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.AbortBadRequest("reading uploaded file failed")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "application/octet-stream" {
		contentType = ""
	}

	s.logger.InfoContext(c.Context(), "file upload",
		slog.String("user_id", c.GetString("userID")),
		slog.String("filename", header.Filename),
		slog.Int("size", len(data)),
	)

	res := s.deps.Files.Upload(c.Context(), objectstore.UploadInput{
		Data:        data,
		Filename:    header.Filename,
		Folder:      r.FormValue("folder"),
		ContentType: contentType,
	})
	return respond(c, res.Outcome, res)
}

func (s *Server) handleFileList(c *okapi.Context) error {
	res := s.deps.Files.List(c.Context(), c.Request().URL.Query().Get("prefix"))
	return respond(c, res.Outcome, res)
}

func (s *Server) handleFileDelete(c *okapi.Context) error {
	path := c.Request().URL.Query().Get("path")
	if path == "" {
		return c.AbortBadRequest("query parameter \"path\" is required")
	}

	s.logger.InfoContext(c.Context(), "file delete",
		slog.String("user_id", c.GetString("userID")),
		slog.String("path", path),
	)

	res := s.deps.Files.Delete(c.Context(), path)
	return respond(c, res, res)
}

func (s *Server) handleSignedURL(c *okapi.Context) error {
	q := c.Request().URL.Query()
	path := q.Get("path")
	if path == "" {
		return c.AbortBadRequest("query parameter \"path\" is required")
	}

	minutes := 0
	if raw := q.Get("minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.AbortBadRequest("minutes must be a positive integer")
		}
		minutes = n
	}

	res := s.deps.Files.SignedURL(c.Context(), path, minutes)
	return respond(c, res.Outcome, res)
}
