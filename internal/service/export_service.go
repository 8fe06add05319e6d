package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/pkg/export"
	"github.com/noah-isme/exam-seating-api/pkg/storage"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

const planExportsDir = "plans"

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	DeleteDir(dir string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type documentRenderer interface {
	RenderDocument(doc export.Document) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       string
	ExpiresAt    time.Time
}

// ExportService renders seating plans and persists the files behind signed URLs.
type ExportService struct {
	storage fileStorage
	csv     documentRenderer
	pdf     documentRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf documentRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		storage: storage,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// ExportPlan renders the master sheet and room grids of a plan and stores the file.
func (s *ExportService) ExportPlan(ctx context.Context, plan *models.SeatingPlan, exam *models.Exam, courses []models.ExamCourse, format string) (*ExportResult, error) {
	if plan == nil || exam == nil {
		return nil, fmt.Errorf("plan and exam are required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := buildPlanDocument(plan, exam, courses)

	var (
		payload []byte
		err     error
	)
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.RenderDocument(doc)
	case ExportFormatPDF:
		payload, err = s.pdf.RenderDocument(doc)
	default:
		err = fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(planExportPath(plan.ID, format), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(plan.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("seating plan exported", zap.String("plan_id", plan.ID), zap.String("format", format), zap.Int("bytes", len(payload)))

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/seating-plans/download/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (planID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// DeletePlanExports removes every file rendered for a plan.
func (s *ExportService) DeletePlanExports(planID string) error {
	return s.storage.DeleteDir(path.Join(planExportsDir, sanitizeFilename(planID)))
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func planExportPath(planID, format string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return path.Join(planExportsDir, sanitizeFilename(planID), fmt.Sprintf("seating_plan_%s.%s", timestamp, format))
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

var masterHeaders = []string{"S.No.", "Room No.", "Course", "Roll Number Range", "Semester", "Branch", "Total Students"}

func buildPlanDocument(plan *models.SeatingPlan, exam *models.Exam, courses []models.ExamCourse) export.Document {
	date := "Date: " + exam.Date.Format("2006-01-02")
	doc := export.Document{Title: exam.Name}
	doc.Sheets = append(doc.Sheets, export.Sheet{
		Title:    exam.Name,
		Subtitle: []string{date, "Seating Plan Master Sheet"},
		Data:     export.Dataset{Headers: masterHeaders, Rows: masterRows(plan, courses)},
	})
	for _, allocation := range plan.ClassroomAllocations {
		doc.Sheets = append(doc.Sheets, export.Sheet{
			Title:    roomTitle(allocation.Classroom),
			Subtitle: []string{exam.Name, date},
			Data:     roomGrid(allocation.SeatMatrix),
		})
	}
	return doc
}

// masterRows lists one row per course seated in each room, in seating order. Courses unknown to
// the exam are left out.
func masterRows(plan *models.SeatingPlan, courses []models.ExamCourse) []map[string]string {
	byCode := make(map[string]models.ExamCourse, len(courses))
	for _, course := range courses {
		byCode[course.CourseCode] = course
	}

	rows := make([]map[string]string, 0)
	serial := 1
	for _, allocation := range plan.ClassroomAllocations {
		var order []string
		groups := make(map[string][]string)
		for _, seatRow := range allocation.SeatMatrix {
			for _, seat := range seatRow {
				if !seat.HasStudent() {
					continue
				}
				code := seat.Student.CourseCode
				if _, seen := groups[code]; !seen {
					order = append(order, code)
				}
				groups[code] = append(groups[code], seat.Student.RollNumber)
			}
		}

		for _, code := range order {
			course, ok := byCode[code]
			if !ok {
				continue
			}
			rolls := groups[code]
			sort.Strings(rolls)
			rows = append(rows, map[string]string{
				"S.No.":             strconv.Itoa(serial),
				"Room No.":          allocation.Classroom.Name,
				"Course":            fmt.Sprintf("%s - %s", code, course.CourseTitle),
				"Roll Number Range": fmt.Sprintf("%s - %s", rolls[0], rolls[len(rolls)-1]),
				"Semester":          strconv.Itoa(course.Semester),
				"Branch":            course.Branch,
				"Total Students":    strconv.Itoa(len(rolls)),
			})
			serial++
		}
	}
	return rows
}

func roomGrid(matrix models.SeatMatrix) export.Dataset {
	columns := 0
	for _, row := range matrix {
		columns = max(columns, len(row))
	}
	headers := make([]string, 0, columns+1)
	headers = append(headers, "Row / Col")
	for c := 1; c <= columns; c++ {
		headers = append(headers, fmt.Sprintf("Column %d", c))
	}

	rows := make([]map[string]string, 0, len(matrix))
	for r, seatRow := range matrix {
		record := map[string]string{"Row / Col": fmt.Sprintf("Row %d", r+1)}
		for c, seat := range seatRow {
			if seat.HasStudent() {
				record[headers[c+1]] = seat.Student.RollNumber
			}
		}
		rows = append(rows, record)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func roomTitle(classroom models.Classroom) string {
	return fmt.Sprintf("%s - Room %s (%d%s Floor)", classroom.Building, classroom.Name, classroom.Floor, ordinalSuffix(classroom.Floor))
}

func ordinalSuffix(n int) string {
	if n < 0 {
		n = -n
	}
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}
