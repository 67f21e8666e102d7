package scans

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"filetrack-backend/internal/files"
	"filetrack-backend/internal/lifecycle"
	"filetrack-backend/internal/shared/apperr"
	"filetrack-backend/internal/shared/storage/object/local"
	"filetrack-backend/internal/shared/util"
)

// buildPDF renders a minimal PDF with the given number of blank pages and a
// correct cross-reference table.
func buildPDF(pages int) []byte {
	var buf bytes.Buffer
	offsets := []int{}
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		writeObj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

type scanFixture struct {
	svc   *Service
	files *files.MemoryRepo
}

type fileLookup struct {
	repo *files.MemoryRepo
}

func (l fileLookup) Get(ctx context.Context, id int64) (files.FileReceipt, error) {
	return l.repo.GetReceipt(ctx, id)
}

func newScanFixture(t *testing.T) *scanFixture {
	t.Helper()
	fileRepo := files.NewMemoryRepo()
	svc := NewService(NewMemoryRepo(), fileLookup{repo: fileRepo}, local.New(t.TempDir()))
	svc.Now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	return &scanFixture{svc: svc, files: fileRepo}
}

func (f *scanFixture) receipt(t *testing.T, pages int, status lifecycle.Status) files.FileReceipt {
	t.Helper()
	ctx := context.Background()
	receipt, _, err := f.files.CreateReceipt(ctx, files.FileReceipt{
		CNRNumber: "DL12345", CaseType: files.CaseCivil, CaseYear: 2023, CaseNumber: "1",
		PageCount: pages, Priority: files.PriorityNormal, ReceivedByID: 1,
		ReceivedAt: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
	}, "File received for digitization")
	if err != nil {
		t.Fatalf("CreateReceipt: %v", err)
	}
	if status != receipt.Status {
		if receipt, _, err = f.files.UpdateReceiptStatus(ctx, receipt.ID, status, receipt.ReceivedAt); err != nil {
			t.Fatalf("UpdateReceiptStatus: %v", err)
		}
	}
	return receipt
}

func TestCountPages(t *testing.T) {
	pages, err := CountPages(buildPDF(3))
	if err != nil {
		t.Fatalf("CountPages: %v", err)
	}
	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}

	if _, err := CountPages([]byte("plain text")); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for non-PDF, got %v", err)
	}
	if _, err := CountPages([]byte("%PDF-1.4\ngarbage")); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for broken PDF, got %v", err)
	}
}

func TestUploadRecordsArtifactAndPageMatch(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()
	receipt := f.receipt(t, 2, lifecycle.StatusScanningCompleted)
	data := buildPDF(2)

	res, err := f.svc.Upload(ctx, UploadInput{FileID: receipt.ID, UploaderID: 2, FileName: "scan.pdf", Data: data})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	a := res.Artifact
	if !a.PagesMatch || a.PageCount != 2 || res.ExpectedPages != 2 {
		t.Fatalf("unexpected artifact: %+v", a)
	}
	if a.SHA256 != util.SHA256Hex(data) || a.SizeBytes != int64(len(data)) || a.MimeType != "application/pdf" {
		t.Fatalf("unexpected metadata: %+v", a)
	}
	if !strings.HasPrefix(a.StorageKey, receipt.TransactionID+"/") {
		t.Fatalf("expected key under %s, got %s", receipt.TransactionID, a.StorageKey)
	}

	opened, rc, err := f.svc.Open(ctx, a.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, data) || opened.ID != a.ID {
		t.Fatalf("downloaded content differs")
	}

	after, _ := f.files.GetReceipt(ctx, receipt.ID)
	if after.Status != lifecycle.StatusScanningCompleted {
		t.Fatalf("upload must not change status, got %s", after.Status)
	}
}

func TestUploadReportsPageMismatch(t *testing.T) {
	f := newScanFixture(t)
	receipt := f.receipt(t, 5, lifecycle.StatusQCDone)

	res, err := f.svc.Upload(context.Background(), UploadInput{FileID: receipt.ID, UploaderID: 2, FileName: "scan.pdf", Data: buildPDF(3)})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Artifact.PagesMatch || res.Artifact.PageCount != 3 || res.ExpectedPages != 5 {
		t.Fatalf("expected mismatch, got %+v", res)
	}
}

func TestUploadRequiresScannedFile(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()
	receipt := f.receipt(t, 2, lifecycle.StatusUnderScanning)

	_, err := f.svc.Upload(ctx, UploadInput{FileID: receipt.ID, UploaderID: 2, FileName: "scan.pdf", Data: buildPDF(2)})
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if _, err := f.svc.Upload(ctx, UploadInput{FileID: 99, UploaderID: 2, Data: buildPDF(1)}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	items, _ := f.svc.List(ctx, receipt.ID)
	if len(items) != 0 {
		t.Fatalf("expected no artifacts, got %d", len(items))
	}
}

func TestUploadHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newScanFixture(t)
	receipt := f.receipt(t, 1, lifecycle.StatusScanningCompleted)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", int64(2))
		c.Set("permission", "edit")
		c.Next()
	})
	NewHandler(f.svc, 1<<20).RegisterRoutes(router.Group("/api/v1"))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "scan.pdf")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write(buildPDF(1))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/files/%d/scans", receipt.ID), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	items, err := f.svc.List(context.Background(), receipt.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one artifact, got %d (%v)", len(items), err)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/scans/"+items[0].ID+"/download", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if cd := resp.Header().Get("Content-Disposition"); !strings.Contains(cd, "scan.pdf") {
		t.Fatalf("unexpected Content-Disposition %q", cd)
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF-1.4")) {
		t.Fatalf("expected PDF body")
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/scans/missing/download", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
