package openapitest

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Call describes one request made through a Client.
//
// Parameters is a tree of maps, slices and scalars. For GET-like methods it
// is encoded into the query string; for POST, PUT, PATCH and DELETE it
// becomes a form body unless Body is set. *File values anywhere in the tree
// are moved to Files under their bracketed field name.
//
// Server holds CGI-style server variables: HTTP_* entries become headers,
// CONTENT_TYPE sets Content-Type, REMOTE_ADDR the remote address, HTTP_HOST
// the host, HTTPS=on the scheme and PHP_AUTH_USER/PHP_AUTH_PW basic auth.
type Call struct {
	Method     string
	URI        string
	Parameters map[string]any
	Cookies    map[string]string
	Files      map[string]*File
	Server     map[string]string
	Body       []byte
}

// File is an uploaded file.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// NewFile returns an in-memory upload with the given file name.
func NewFile(name string, content []byte) *File {
	return &File{Name: name, Content: content}
}

// OpenFile reads the file at path into an upload.
func OpenFile(path string) (*File, error) {
	//nolint:gosec // Upload fixtures are chosen by the test author.
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return &File{Name: filepath.Base(path), Content: content}, nil
}

func (f *File) contentType() string {
	if f.ContentType == "" {
		return "application/octet-stream"
	}
	return f.ContentType
}

// builtRequest is the protocol-level form of a Call. The body is kept as
// bytes so the request can be validated and dispatched independently.
type builtRequest struct {
	method     string
	url        *url.URL
	header     http.Header
	host       string
	remoteAddr string
	body       []byte
}

func (b *builtRequest) newRequest(ctx context.Context) (*http.Request, error) {
	u := *b.url
	req, err := http.NewRequestWithContext(ctx, b.method, u.String(), bytes.NewReader(b.body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if len(b.body) == 0 {
		req.Body = http.NoBody
		req.GetBody = nil
		req.ContentLength = 0
	}
	req.Header = b.header.Clone()
	if b.host != "" {
		req.Host = b.host
	}
	req.RemoteAddr = b.remoteAddr
	return req, nil
}

var formMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func buildRequest(baseURL string, call Call) (*builtRequest, error) {
	method := strings.ToUpper(strings.TrimSpace(call.Method))
	if method == "" {
		method = http.MethodGet
	}

	u, err := resolveURI(baseURL, call.URI)
	if err != nil {
		return nil, err
	}

	params, extracted := extractFiles(call.Parameters)
	files := make(map[string]*File, len(call.Files)+len(extracted))
	for name, f := range call.Files {
		if f != nil {
			files[name] = f
		}
	}
	for name, f := range extracted {
		files[name] = f
	}
	fields := flattenParameters(params)

	b := &builtRequest{
		method: method,
		url:    u,
		header: http.Header{},
	}

	if err := applyServerVariables(b, call.Server); err != nil {
		return nil, err
	}

	switch {
	case !formMethods[method]:
		if len(fields) > 0 {
			q := u.Query()
			for k, v := range fields {
				q[k] = v
			}
			u.RawQuery = q.Encode()
		}
		b.body = call.Body
	case call.Body != nil:
		b.body = call.Body
	case len(files) > 0:
		body, contentType, err := encodeMultipart(fields, files)
		if err != nil {
			return nil, err
		}
		b.body = body
		b.header.Set("Content-Type", contentType)
	case len(fields) > 0:
		b.body = []byte(fields.Encode())
		if b.header.Get("Content-Type") == "" {
			b.header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}

	if len(call.Cookies) > 0 {
		pairs := make([]string, 0, len(call.Cookies))
		for _, name := range sortedKeys(call.Cookies) {
			pairs = append(pairs, (&http.Cookie{Name: name, Value: call.Cookies[name]}).String())
		}
		b.header.Set("Cookie", strings.Join(pairs, "; "))
	}

	return b, nil
}

func resolveURI(baseURL, uri string) (*url.URL, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		u, err := url.Parse(uri)
		if err != nil {
			return nil, fmt.Errorf("parse uri: %w", err)
		}
		return u, nil
	}

	base := strings.TrimRight(baseURL, "/")
	u, err := url.Parse(base + "/" + strings.TrimLeft(uri, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse uri: %w", err)
	}
	return u, nil
}

func applyServerVariables(b *builtRequest, server map[string]string) error {
	var user, password string
	var hasAuth bool

	for _, key := range sortedKeys(server) {
		value := server[key]
		switch {
		case key == "CONTENT_TYPE":
			b.header.Set("Content-Type", value)
		case key == "CONTENT_LENGTH":
			// Derived from the body.
		case key == "REMOTE_ADDR":
			if _, _, err := net.SplitHostPort(value); err == nil {
				b.remoteAddr = value
			} else {
				b.remoteAddr = net.JoinHostPort(value, "0")
			}
		case key == "HTTPS":
			if on, _ := strconv.ParseBool(value); on || strings.EqualFold(value, "on") {
				b.url.Scheme = "https"
			}
		case key == "SERVER_NAME":
			if b.host == "" {
				b.host = value
			}
		case key == "HTTP_HOST":
			// Host header only; the connection still targets the URL host.
			b.host = value
		case key == "PHP_AUTH_USER":
			user, hasAuth = value, true
		case key == "PHP_AUTH_PW":
			password = value
		case strings.HasPrefix(key, "HTTP_"):
			name := strings.ReplaceAll(strings.TrimPrefix(key, "HTTP_"), "_", "-")
			if name == "" {
				return fmt.Errorf("invalid server variable %q", key)
			}
			b.header.Set(textproto.CanonicalMIMEHeaderKey(name), value)
		}
	}

	if hasAuth {
		req := &http.Request{Header: b.header}
		req.SetBasicAuth(user, password)
	}
	return nil
}

// extractFiles returns a copy of params without *File values, and the removed
// files keyed by their bracketed field name.
func extractFiles(params map[string]any) (map[string]any, map[string]*File) {
	files := map[string]*File{}
	if len(params) == 0 {
		return params, files
	}

	out := make(map[string]any, len(params))
	for key, value := range params {
		if kept, ok := extractValue(key, value, files); ok {
			out[key] = kept
		}
	}
	return out, files
}

func extractValue(name string, value any, files map[string]*File) (any, bool) {
	switch v := value.(type) {
	case *File:
		if v != nil {
			files[name] = v
		}
		return nil, false
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			if kept, ok := extractValue(name+"["+key+"]", child, files); ok {
				out[key] = kept
			}
		}
		if len(out) == 0 && len(v) > 0 {
			return nil, false
		}
		return out, true
	case []any:
		out := make([]any, 0, len(v))
		for i, child := range v {
			if kept, ok := extractValue(name+"["+strconv.Itoa(i)+"]", child, files); ok {
				out = append(out, kept)
			}
		}
		if len(out) == 0 && len(v) > 0 {
			return nil, false
		}
		return out, true
	case []*File:
		for i, f := range v {
			if f != nil {
				files[name+"["+strconv.Itoa(i)+"]"] = f
			}
		}
		return nil, false
	default:
		return value, true
	}
}

// flattenParameters encodes a parameter tree with bracketed keys, the way
// form parsers on both sides of the wire expect nested fields.
func flattenParameters(params map[string]any) url.Values {
	out := url.Values{}
	for key, value := range params {
		flattenValue(out, key, value)
	}
	return out
}

func flattenValue(out url.Values, name string, value any) {
	switch v := value.(type) {
	case nil:
		out.Add(name, "")
	case string:
		out.Add(name, v)
	case []string:
		for i, s := range v {
			out.Add(name+"["+strconv.Itoa(i)+"]", s)
		}
	case bool:
		out.Add(name, strconv.FormatBool(v))
	case map[string]any:
		for key, child := range v {
			flattenValue(out, name+"["+key+"]", child)
		}
	case []any:
		for i, child := range v {
			flattenValue(out, name+"["+strconv.Itoa(i)+"]", child)
		}
	case fmt.Stringer:
		out.Add(name, v.String())
	default:
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
			for _, key := range rv.MapKeys() {
				flattenValue(out, name+"["+key.String()+"]", rv.MapIndex(key).Interface())
			}
			return
		}
		out.Add(name, fmt.Sprint(value))
	}
}

func encodeMultipart(fields url.Values, files map[string]*File) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, name := range sortedKeys(fields) {
		for _, value := range fields[name] {
			h := textproto.MIMEHeader{}
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, escapeQuotes(name)))
			h.Set("Content-Type", "text/plain")
			part, err := w.CreatePart(h)
			if err != nil {
				return nil, "", fmt.Errorf("create form field: %w", err)
			}
			if _, err := part.Write([]byte(value)); err != nil {
				return nil, "", fmt.Errorf("write form field: %w", err)
			}
		}
	}

	for _, name := range sortedKeys(files) {
		f := files[name]
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(name), escapeQuotes(f.Name)))
		h.Set("Content-Type", f.contentType())
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("write form file: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
