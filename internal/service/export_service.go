package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/umoja-platform/umoja-api/internal/models"
	appErrors "github.com/umoja-platform/umoja-api/pkg/errors"
	"github.com/umoja-platform/umoja-api/pkg/export"
	"github.com/umoja-platform/umoja-api/pkg/storage"
)

type rosterReader interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
}

// ExportFormat names a supported roster document format.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// rosterPageSize is the page size used when reading accepted applications.
// It must not exceed the repository's per-page cap.
const rosterPageSize = 100

// ExportResult carries the rendered document and its HTTP metadata. When an
// archive is configured the result also carries a signed token for later
// download without re-rendering.
type ExportResult struct {
	FileName      string
	ContentType   string
	Data          []byte
	DownloadToken string
}

// ExportService renders accepted-participant rosters for mentorship
// programs. Only the program's mentor and admins may export.
type ExportService struct {
	applications rosterReader
	programs     programReader
	archive      *storage.LocalStorage
	signer       *storage.SignedURLSigner
	logger       *zap.Logger
}

// NewExportService constructs ExportService. Archive and signer are optional;
// without them rosters are rendered per request and never persisted.
func NewExportService(applications rosterReader, programs programReader, archive *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		applications: applications,
		programs:     programs,
		archive:      archive,
		signer:       signer,
		logger:       logger,
	}
}

// Roster renders the accepted applications of one program.
func (s *ExportService) Roster(ctx context.Context, actor *models.JWTClaims, programID string, format ExportFormat) (*ExportResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	program, err := s.programs.FindByID(ctx, programID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load program")
	}
	if actor.UserID != program.MentorID && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the program mentor or an admin may export the roster")
	}

	// Paged read; programs may admit more participants than one page holds.
	var accepted []models.ApplicationDetail
	for page := 1; ; page++ {
		batch, total, err := s.applications.List(ctx, models.ApplicationFilter{
			ProgramID: programID,
			Status:    models.ApplicationStatusAccepted,
			Page:      page,
			PageSize:  rosterPageSize,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load accepted applications")
		}
		accepted = append(accepted, batch...)
		if len(batch) == 0 || len(accepted) >= total {
			break
		}
	}

	table := export.Table{
		Title:   fmt.Sprintf("%s - participant roster", program.Title),
		Columns: []string{"Student", "Status", "Applied", "Reviewed"},
	}
	for _, app := range accepted {
		reviewed := ""
		if app.ReviewedAt != nil {
			reviewed = app.ReviewedAt.UTC().Format("2006-01-02")
		}
		table.Rows = append(table.Rows, []string{
			app.StudentName,
			string(app.Status),
			app.CreatedAt.UTC().Format("2006-01-02"),
			reviewed,
		})
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case ExportFormatCSV:
		data, err = export.CSV(table)
		contentType = "text/csv"
	case ExportFormatPDF:
		data, err = export.PDF(table)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format: "+string(format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	result := &ExportResult{
		FileName:    fmt.Sprintf("roster-%s.%s", programID, format),
		ContentType: contentType,
		Data:        data,
	}
	s.archiveRoster(result)
	return result, nil
}

// Download resolves a previously issued roster token and streams the archived
// document. The signed token is the sole authorization.
func (s *ExportService) Download(token string) (*ExportResult, error) {
	if s.archive == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export archive is not enabled")
	}
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.archive.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	defer file.Close() //nolint:errcheck
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read archived export")
	}
	return &ExportResult{
		FileName:    relPath,
		ContentType: contentTypeFor(relPath),
		Data:        data,
	}, nil
}

func (s *ExportService) archiveRoster(result *ExportResult) {
	if s.archive == nil || s.signer == nil {
		return
	}
	if _, err := s.archive.Save(result.FileName, result.Data); err != nil {
		s.logger.Warn("failed to archive roster export", zap.Error(err))
		return
	}
	// The token's job id segment must stay dot-free; the file name carries an
	// extension, so it only travels in the encoded path segment.
	token, _, err := s.signer.Generate(uuid.NewString(), result.FileName)
	if err != nil {
		s.logger.Warn("failed to sign roster download token", zap.Error(err))
		return
	}
	result.DownloadToken = token
}

func contentTypeFor(path string) string {
	if len(path) > 4 && path[len(path)-4:] == ".pdf" {
		return "application/pdf"
	}
	return "text/csv"
}
