package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/inspectorat/core"
)

type (
	// apiDoc collects the routes into an OpenAPI 3.0 document as they are registered.
	apiDoc struct {
		OpenAPI    string                          `json:"openapi" yaml:"openapi"`
		Info       docInfo                         `json:"info" yaml:"info"`
		Servers    []docServer                     `json:"servers" yaml:"servers"`
		Paths      map[string]map[string]operation `json:"paths" yaml:"paths"`
		Components docComponents                   `json:"components" yaml:"components"`
	}

	docInfo struct {
		Title   string `json:"title" yaml:"title"`
		Version string `json:"version" yaml:"version"`
	}

	docServer struct {
		URL string `json:"url" yaml:"url"`
	}

	docComponents struct {
		SecuritySchemes map[string]securityScheme `json:"securitySchemes" yaml:"securitySchemes"`
	}

	securityScheme struct {
		Type         string `json:"type" yaml:"type"`
		Scheme       string `json:"scheme" yaml:"scheme"`
		BearerFormat string `json:"bearerFormat" yaml:"bearerFormat"`
	}

	operation struct {
		Tags       []string              `json:"tags" yaml:"tags"`
		Summary    string                `json:"summary" yaml:"summary"`
		Parameters []parameter           `json:"parameters,omitempty" yaml:"parameters,omitempty"`
		Responses  map[string]docMessage `json:"responses" yaml:"responses"`
		Security   []map[string][]string `json:"security,omitempty" yaml:"security,omitempty"`
	}

	parameter struct {
		Name     string            `json:"name" yaml:"name"`
		In       string            `json:"in" yaml:"in"`
		Required bool              `json:"required" yaml:"required"`
		Schema   map[string]string `json:"schema" yaml:"schema"`
	}

	docMessage struct {
		Description string `json:"description" yaml:"description"`
	}
)

const bearerAuth = "bearerAuth"

func newAPIDoc(conf *core.Config) *apiDoc {
	url := conf.Server.BasePath
	if url == "" {
		url = "/"
	}
	return &apiDoc{
		OpenAPI: "3.0.3",
		Info:    docInfo{Title: conf.AppName + " API", Version: "1.0.0"},
		Servers: []docServer{{URL: url}},
		Paths:   make(map[string]map[string]operation),
		Components: docComponents{
			SecuritySchemes: map[string]securityScheme{
				bearerAuth: {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
			},
		},
	}
}

// add documents one route. echo's `:param` segments become OpenAPI `{param}` ones.
func (doc *apiDoc) add(method, path, tag, summary string, secured bool) {
	op := operation{
		Tags:      []string{tag},
		Summary:   summary,
		Responses: responsesFor(method),
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") {
			name := seg[1:]
			segments[i] = "{" + name + "}"
			op.Parameters = append(op.Parameters, parameter{
				Name:     name,
				In:       "path",
				Required: true,
				Schema:   map[string]string{"type": "string"},
			})
		}
	}
	if secured {
		op.Security = []map[string][]string{{bearerAuth: {}}}
		op.Responses["401"] = docMessage{Description: "Missing or invalid token"}
	}

	path = strings.Join(segments, "/")
	if doc.Paths[path] == nil {
		doc.Paths[path] = make(map[string]operation)
	}
	doc.Paths[path][strings.ToLower(method)] = op
}

func responsesFor(method string) map[string]docMessage {
	resps := map[string]docMessage{"500": {Description: "Internal Server Error"}}
	switch method {
	case http.MethodPost:
		resps["201"] = docMessage{Description: "Created"}
		resps["400"] = docMessage{Description: "Invalid data"}
	case http.MethodPut:
		resps["200"] = docMessage{Description: "Updated"}
		resps["400"] = docMessage{Description: "Invalid data"}
		resps["404"] = docMessage{Description: "Not found"}
	case http.MethodDelete:
		resps["200"] = docMessage{Description: "Deleted"}
		resps["404"] = docMessage{Description: "Not found"}
	default:
		resps["200"] = docMessage{Description: "OK"}
		resps["404"] = docMessage{Description: "Not found"}
	}
	return resps
}

func (s *Server) serveDocs(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.docs)
}

func (s *Server) serveDocsYAML(ctx echo.Context) error {
	data, err := yaml.Marshal(s.docs)
	if err != nil {
		return errors.Wrap(err, "marshalling API docs")
	}
	return ctx.Blob(http.StatusOK, "application/yaml", data)
}
