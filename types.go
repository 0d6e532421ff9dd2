package web2pdf

import (
	"bytes"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// PDF page layout. The format is fixed: A4 with 1cm margins on every side.
const (
	paperWidthInches  = 8.27
	paperHeightInches = 11.69
	cmPerInch         = 2.54
	marginCm          = 1.0
)

// pdfSignature is the header every PDF document starts with.
var pdfSignature = []byte("%PDF-")

// Default timings.
const (
	DefaultLaunchTimeout     = 100 * time.Second
	DefaultNavigationTimeout = 180 * time.Second
	DefaultBootstrapTimeout  = 180 * time.Second
	DefaultIdleWindow        = 500 * time.Millisecond
	DefaultSettleDelay       = time.Second
)

// Outcome is the single result delivered for a RenderJob.
// Exactly one of PDF or Err is set.
type Outcome struct {
	JobID   string
	PDF     []byte
	Err     error
	Elapsed time.Duration
}

// OK reports whether the job produced a PDF.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Kind returns the failure kind, or "" on success.
func (o Outcome) Kind() string {
	return FailureKind(o.Err)
}

// Message returns the human-readable failure message, or "" on success.
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// IsPDF reports whether data starts with the PDF file signature.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfSignature)
}

// pdfOptions builds the print parameters used for every capture.
func pdfOptions() *proto.PagePrintToPDF {
	margin := marginCm / cmPerInch
	return &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(paperWidthInches),
		PaperHeight:     floatPtr(paperHeightInches),
		MarginTop:       floatPtr(margin),
		MarginBottom:    floatPtr(margin),
		MarginLeft:      floatPtr(margin),
		MarginRight:     floatPtr(margin),
		PrintBackground: true,
	}
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}
