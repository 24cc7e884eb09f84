package filetype

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind is the coarse class an upload is routed by.
type Kind int

const (
	Unsupported Kind = iota
	PDF
	Office
	Text
	Image
)

func (k Kind) String() string {
	switch k {
	case PDF:
		return "pdf"
	case Office:
		return "office"
	case Text:
		return "text"
	case Image:
		return "image"
	}
	return "unsupported"
}

// Info contains detected file type information
type Info struct {
	MIMEType  string
	Extension string
	Kind      Kind
}

// zip containers are classified by the uploaded name
var zipOffice = map[string]string{
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".odt":  "application/vnd.oasis.opendocument.text",
	".ods":  "application/vnd.oasis.opendocument.spreadsheet",
	".odp":  "application/vnd.oasis.opendocument.presentation",
}

// legacy office formats share the OLE compound file signature
var oleOffice = map[string]string{
	".doc": "application/msword",
	".xls": "application/vnd.ms-excel",
	".ppt": "application/vnd.ms-powerpoint",
}

var officeMIME = map[string]bool{
	"application/rtf": true,
	"text/rtf":        true,
	"text/csv":        true,
}

func init() {
	for _, m := range zipOffice {
		officeMIME[m] = true
	}
	for _, m := range oleOffice {
		officeMIME[m] = true
	}
}

// Detect classifies data by its magic bytes. The filename only decides
// between formats that share a container signature.
func Detect(data []byte, filename string) Info {
	mtype := mimetype.Detect(data)
	info := Info{MIMEType: mtype.String(), Extension: mtype.Extension()}
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case mtype.Is("application/zip"):
		if m, ok := zipOffice[ext]; ok {
			info.MIMEType, info.Extension = m, ext
		}
	case mtype.Is("application/x-ole-storage"):
		if m, ok := oleOffice[ext]; ok {
			info.MIMEType, info.Extension = m, ext
		}
	}

	info.Kind = classify(mtype, info.MIMEType)
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Str("kind", info.Kind.String()).Msg("detected file type")
	return info
}

func classify(mtype *mimetype.MIME, override string) Kind {
	switch {
	case mtype.Is("application/pdf"):
		return PDF
	case officeMIME[override]:
		return Office
	case mtype.Is("text/plain"), strings.HasPrefix(override, "text/"):
		return Text
	case strings.HasPrefix(override, "image/"):
		return Image
	}
	for p := mtype.Parent(); p != nil; p = p.Parent() {
		if officeMIME[p.String()] {
			return Office
		}
	}
	return Unsupported
}
