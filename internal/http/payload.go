package http

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"

	"complaints-backend-go/internal/apperr"
	"complaints-backend-go/internal/submission"
)

//go:embed schemas/*.json
var schemaFS embed.FS

func mustSchema(name string) *gojsonschema.Schema {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	return schema
}

// Fields a submission document may carry. Anything else, user_id included,
// is ignored.
var submissionFields = []string{
	"category_id", "image_url", "notes", "latitude", "longitude",
	"counter_number", "consumption_number", "invoice_image", "created_at",
}

var fileFields = []string{"image_url", "invoice_image"}

var errBodyTooLarge = errors.New("request body too large")

// document is a submission payload read from JSON or form encoding. File
// parts are kept aside; their filenames stand in for the reference in
// fields so the schema sees a single shape.
type document struct {
	fields map[string]any
	files  map[string]*multipart.FileHeader
}

func (d *document) has(key string) bool {
	_, ok := d.fields[key]
	return ok
}

func (d *document) text(key string) *string {
	v, ok := d.fields[key]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	return &s
}

// nullableText maps an explicit null to an empty string, which clears the
// value on update.
func (d *document) nullableText(key string) *string {
	if !d.has(key) {
		return nil
	}
	if s := d.text(key); s != nil {
		return s
	}
	empty := ""
	return &empty
}

func readDocument(c *gin.Context, maxBytes int64) (*document, error) {
	doc := &document{fields: map[string]any{}, files: map[string]*multipart.FileHeader{}}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	switch c.ContentType() {
	case gin.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(maxBytes); err != nil {
			return nil, bodyError(err, "malformed multipart form")
		}
		readForm(doc, c.Request.MultipartForm.Value)
		for _, key := range fileFields {
			if fhs := c.Request.MultipartForm.File[key]; len(fhs) > 0 {
				doc.files[key] = fhs[0]
				name := fhs[0].Filename
				if name == "" {
					name = key
				}
				doc.fields[key] = name
			}
		}
	case gin.MIMEPOSTForm:
		if err := c.Request.ParseForm(); err != nil {
			return nil, bodyError(err, "malformed form body")
		}
		readForm(doc, c.Request.PostForm)
	default:
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		raw := map[string]any{}
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, bodyError(err, "request body must be a JSON object")
		}
		for _, key := range submissionFields {
			if v, ok := raw[key]; ok {
				doc.fields[key] = v
			}
		}
	}
	return doc, nil
}

func readForm(doc *document, values map[string][]string) {
	for _, key := range submissionFields {
		vs, ok := values[key]
		if !ok || len(vs) == 0 {
			continue
		}
		// An empty created_at in a form means "not supplied".
		if key == "created_at" && strings.TrimSpace(vs[0]) == "" {
			continue
		}
		doc.fields[key] = vs[0]
	}
}

func bodyError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errBodyTooLarge
	}
	return apperr.Validation("", msg)
}

// validate checks the document against schema and reports the first
// violation as a field error.
func validate(schema *gojsonschema.Schema, doc *document) error {
	res, err := schema.Validate(gojsonschema.NewGoLoader(doc.fields))
	if err != nil {
		return apperr.Internal(err)
	}
	if res.Valid() {
		return nil
	}
	first := res.Errors()[0]
	field := first.Field()
	if field == "(root)" {
		if p, ok := first.Details()["property"].(string); ok {
			field = p
		}
	}
	return apperr.Validation(field, first.Description())
}

// file resolves key to an upload or a plain reference. The returned closer
// must be called once the service is done with the body.
func (d *document) file(key string) (*submission.File, func(), error) {
	if fh, ok := d.files[key]; ok {
		f, err := fh.Open()
		if err != nil {
			return nil, func() {}, apperr.Validation(key, "could not read uploaded file")
		}
		return &submission.File{Upload: &submission.Upload{Filename: fh.Filename, Body: f}}, func() { f.Close() }, nil
	}
	if !d.has(key) {
		return nil, func() {}, nil
	}
	ref := ""
	if s := d.text(key); s != nil {
		ref = *s
	}
	return &submission.File{Ref: ref}, func() {}, nil
}

func (d *document) createInput() (submission.CreateInput, func(), error) {
	var in submission.CreateInput
	closers := []func(){}
	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}

	if s := d.text("category_id"); s != nil {
		id, err := strconv.ParseUint(strings.TrimSpace(*s), 10, 32)
		if err != nil {
			return in, closeAll, apperr.Validation("category_id", "category_id must be a positive integer")
		}
		in.CategoryID = uint(id)
	}
	if s := d.text("latitude"); s != nil {
		in.Latitude = *s
	}
	if s := d.text("longitude"); s != nil {
		in.Longitude = *s
	}
	in.Notes = d.text("notes")
	in.CounterNumber = d.text("counter_number")
	in.ConsumptionNumber = d.text("consumption_number")
	if s := d.text("created_at"); s != nil {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(*s))
		if err != nil {
			return in, closeAll, apperr.Validation("created_at", "created_at must be an RFC 3339 timestamp")
		}
		in.CreatedAt = &t
	}

	image, closeImage, err := d.file("image_url")
	closers = append(closers, closeImage)
	if err != nil {
		return in, closeAll, err
	}
	in.Image = image
	invoice, closeInvoice, err := d.file("invoice_image")
	closers = append(closers, closeInvoice)
	if err != nil {
		return in, closeAll, err
	}
	in.InvoiceImage = invoice
	return in, closeAll, nil
}

func (d *document) updateInput() (submission.UpdateInput, func(), error) {
	var in submission.UpdateInput
	closers := []func(){}
	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}

	in.Latitude = d.text("latitude")
	in.Longitude = d.text("longitude")
	in.Notes = d.nullableText("notes")
	in.CounterNumber = d.nullableText("counter_number")
	in.ConsumptionNumber = d.nullableText("consumption_number")

	image, closeImage, err := d.file("image_url")
	closers = append(closers, closeImage)
	if err != nil {
		return in, closeAll, err
	}
	in.Image = image
	invoice, closeInvoice, err := d.file("invoice_image")
	closers = append(closers, closeInvoice)
	if err != nil {
		return in, closeAll, err
	}
	in.InvoiceImage = invoice
	return in, closeAll, nil
}
