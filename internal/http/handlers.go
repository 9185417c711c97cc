package http

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"

	"github.com/fyrsmithlabs/landrag/internal/ingest"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type plotsFunc func(ctx context.Context, payload []byte, collection string) ingest.GeoResult

type documentFunc func(ctx context.Context, src ingest.Source, collection string) ingest.DocumentResult

// handleHealth reports ok, or 503 when the vector store is unreachable.
func (s *Server) handleHealth(c echo.Context) error {
	if s.services.Health != nil {
		if err := s.services.Health.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
		}
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// admit waits for a job slot.
func (s *Server) admit(ctx context.Context) (func(), error) {
	release, err := s.jobs.acquire(ctx)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "request cancelled while queued")
	}
	return release, nil
}

// collectionName reads collection_name from the query string or form.
func collectionName(c echo.Context, fallback string) string {
	if name := c.FormValue("collection_name"); name != "" {
		return name
	}
	return fallback
}

func uploadedFile(c echo.Context) (*multipart.FileHeader, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}
	return fh, nil
}

func (s *Server) handlePlots(run plotsFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		collection := collectionName(c, DefaultPlotCollection)

		fh, err := uploadedFile(c)
		if err != nil {
			return err
		}
		f, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
		}
		defer f.Close()
		payload, err := io.ReadAll(f)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
		}

		release, err := s.admit(ctx)
		if err != nil {
			return err
		}
		defer release()

		return c.JSON(http.StatusOK, run(ctx, payload, collection))
	}
}

func (s *Server) handleDocument(run documentFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		collection := collectionName(c, DefaultDocumentCollection)

		fh, err := uploadedFile(c)
		if err != nil {
			return err
		}
		tmp, size, err := spool(fh)
		if err != nil {
			s.logger.Error(ctx, "spooling upload failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
		}
		defer func() {
			tmp.Close()
			if err := os.Remove(tmp.Name()); err != nil {
				s.logger.Warn(ctx, "failed to delete temp file", zap.String("path", tmp.Name()), zap.Error(err))
			}
		}()

		release, err := s.admit(ctx)
		if err != nil {
			return err
		}
		defer release()

		src := ingest.Source{Name: fh.Filename, Reader: tmp, Size: size}
		return c.JSON(http.StatusOK, run(ctx, src, collection))
	}
}

// spool copies an upload into a temp file so the extractor can seek in it.
func spool(fh *multipart.FileHeader) (*os.File, int64, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, 0, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "landrag-*.pdf")
	if err != nil {
		return nil, 0, err
	}
	size, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, 0, err
	}
	return tmp, size, nil
}

func (s *Server) handleDeleteCollection(c echo.Context) error {
	name := c.FormValue("collection_name")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "collection_name is required")
	}
	return c.JSON(http.StatusOK, s.services.Collections.Delete(c.Request().Context(), name))
}

func (s *Server) handleSelectByValue(c echo.Context) error {
	name := c.QueryParam("collection_name")
	// key is the field name used by older clients.
	field := c.QueryParam("field")
	if field == "" {
		field = c.QueryParam("key")
	}
	value := c.QueryParam("value")
	if name == "" || field == "" || !c.QueryParams().Has("value") {
		return echo.NewHTTPError(http.StatusBadRequest, "collection_name, field and value are required")
	}

	release, err := s.admit(c.Request().Context())
	if err != nil {
		return err
	}
	defer release()

	return c.JSON(http.StatusOK, s.services.Collections.SelectByValue(c.Request().Context(), name, field, value))
}

func (s *Server) handleSelectByID(c echo.Context) error {
	name := c.QueryParam("collection_name")
	raw := c.QueryParam("id")
	if raw == "" {
		raw = c.QueryParam("value")
	}
	if name == "" || raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "collection_name and id are required")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id must be a non-negative integer")
	}
	return c.JSON(http.StatusOK, s.services.Collections.GetPoint(c.Request().Context(), name, id))
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	collection := req.CollectionName
	if collection == "" {
		collection = DefaultPlotCollection
	}

	ctx := c.Request().Context()
	release, err := s.admit(ctx)
	if err != nil {
		return err
	}
	defer release()

	answer := s.services.Chat.Answer(ctx, collection, req.Messages)
	return c.JSON(http.StatusOK, ChatResponse{Response: answer.Response})
}
