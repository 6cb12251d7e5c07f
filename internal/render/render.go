// Package render lays out a verification report as an unsigned PDF.
// It is a pure collaborator of the generation pipeline: field map in,
// page bytes out, no storage or signing concerns.
package render

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/go-pdf/fpdf"

	"reportsigner/internal/model"
)

// Renderer produces unsigned report bytes from a field map.
type Renderer interface {
	// Render lays out the report. qrPNG, when non-empty, is placed in the
	// top-left corner; downloadURL is printed under the report date.
	Render(req *model.ReportRequest, qrPNG []byte, downloadURL string, reportDate string) ([]byte, error)
}

type reportRenderer struct{}

// NewRenderer returns the standard report layout.
func NewRenderer() Renderer {
	return &reportRenderer{}
}

// Brand colors used for headings and result highlighting.
var (
	headingBlue = [3]int{16, 41, 77}
	passGreen   = [3]int{0, 128, 0}
	failRed     = [3]int{204, 0, 0}
)

func (r *reportRenderer) Render(req *model.ReportRequest, qrPNG []byte, downloadURL string, reportDate string) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("report request is nil")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	if len(qrPNG) > 0 {
		pdf.RegisterImageOptionsReader("qr", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qrPNG))
		pdf.ImageOptions("qr", 15, 12, 26, 26, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 26)
	pdf.SetTextColor(190, 190, 190)
	pdf.CellFormat(0, 14, "VERIFICATION REPORT", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "B", 15)
	pdf.SetTextColor(headingBlue[0], headingBlue[1], headingBlue[2])
	pdf.CellFormat(0, 9, "Geographic and Identity Verification", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 5, "Report date: "+reportDate, "", 1, "L", false, 0, "")

	if downloadURL != "" {
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(0, 0, 200)
		pdf.MultiCell(0, 4, "Download URL: "+downloadURL, "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(4)

	sectionHeader(pdf, "SUBJECT DATA")
	addField(pdf, "Name:", req.SubjectName)
	addField(pdf, "National ID:", req.SubjectID)
	addField(pdf, "License number:", req.LicenseNumber)
	addField(pdf, "License issue date:", req.LicenseDate)
	addField(pdf, "Health system:", req.HealthSystem)

	sectionHeader(pdf, "LOCATION AND IDENTITY VALIDATION")
	addField(pdf, "Validated at:", req.ValidatedAt)
	addField(pdf, "- GPS latitude:", req.Latitude)
	addField(pdf, "- GPS longitude:", req.Longitude)
	addField(pdf, "- GPS accuracy:", req.GPSAccuracy)
	addField(pdf, "- GPS tampered:", req.GPSTampered)
	addField(pdf, "- Address reported by GPS:", req.GPSAddress)
	addField(pdf, "- Registered rest address:", req.RestAddress)
	addField(pdf, "- Distance to rest address:", req.RestDistance)

	addField(pdf, "Geographic validation result:", "")
	result := req.GeoResult
	if result == "" {
		result = "N/A"
	}
	color := failRed
	if req.GeoResultPassed() {
		color = passGreen
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(color[0], color[1], color[2])
	pdf.CellFormat(0, 6, result, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	addField(pdf, "Facial recognition result:", req.FaceResult)
	addField(pdf, "Operator:", req.Operator)

	if len(req.AdditionalFields) > 0 {
		sectionHeader(pdf, "ADDITIONAL FIELDS")
		for _, k := range sortedKeys(req.AdditionalFields) {
			addField(pdf, k+":", req.AdditionalFields[k])
		}
	}

	if req.Observations != "" || req.UsageNote != "" {
		sectionHeader(pdf, "OBSERVATIONS")
		pdf.SetFont("Helvetica", "", 10)
		if req.Observations != "" {
			pdf.MultiCell(0, 5, req.Observations, "", "J", false)
		}
		if req.UsageNote != "" {
			pdf.MultiCell(0, 5, req.UsageNote, "", "J", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func sectionHeader(pdf *fpdf.Fpdf, title string) {
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(headingBlue[0], headingBlue[1], headingBlue[2])
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func addField(pdf *fpdf.Fpdf, label, value string) {
	pdf.SetFont("Helvetica", "B", 10)
	labelWidth := pdf.GetStringWidth(label) + 2
	pdf.CellFormat(labelWidth, 5.5, label, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if value == "" {
		value = "N/A"
	}
	pdf.CellFormat(0, 5.5, value, "", 1, "L", false, 0, "")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
