// Package main checks that an API revision does not break clients built
// against an earlier swagger document.
//
// A revision breaks compatibility when it removes a path, an operation or a
// response code, or when it adds a required parameter to an existing
// operation. Documents may be YAML or JSON.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"sidequest/docs"

	"gopkg.in/yaml.v3"
)

var supportedMethods = map[string]struct{}{
	"get":     {},
	"put":     {},
	"post":    {},
	"delete":  {},
	"patch":   {},
	"head":    {},
	"options": {},
}

type operation struct {
	Responses map[string]struct{}
	// Required holds "in:name" for each required parameter.
	Required map[string]struct{}
}

type apiDoc struct {
	Paths map[string]map[string]operation
}

func main() {
	basePath := flag.String("base", "", "base swagger document (yaml or json)")
	revisionPath := flag.String("revision", "", "revision swagger document; defaults to the one compiled into this binary")
	flag.Parse()

	if strings.TrimSpace(*basePath) == "" {
		fmt.Fprintln(os.Stderr, "usage: openapi-compat -base <path> [-revision <path>]")
		os.Exit(2)
	}

	base, err := loadFile(*basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load base document: %v\n", err)
		os.Exit(1)
	}

	var revision apiDoc
	if strings.TrimSpace(*revisionPath) == "" {
		revision, err = parseDoc([]byte(docs.SwaggerInfo.ReadDoc()))
	} else {
		revision, err = loadFile(*revisionPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load revision document: %v\n", err)
		os.Exit(1)
	}

	issues := compare(base, revision)
	if len(issues) > 0 {
		fmt.Fprintln(os.Stderr, "backward compatibility check failed:")
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "- %s\n", issue)
		}
		os.Exit(1)
	}

	fmt.Println("openapi compatibility check passed")
}

func loadFile(path string) (apiDoc, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return apiDoc{}, err
	}
	return parseDoc(raw)
}

// parseDoc reads the paths section of a swagger document. JSON is valid
// YAML, so one decoder handles both.
func parseDoc(raw []byte) (apiDoc, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return apiDoc{}, err
	}

	pathsRaw, ok := doc["paths"]
	if !ok {
		return apiDoc{}, errors.New("missing top-level paths field")
	}
	pathsMap, ok := toMap(pathsRaw)
	if !ok {
		return apiDoc{}, errors.New("paths is not an object")
	}

	out := apiDoc{Paths: make(map[string]map[string]operation)}
	for pathKey, pathEntry := range pathsMap {
		pathOps, ok := toMap(pathEntry)
		if !ok {
			continue
		}

		ops := make(map[string]operation)
		for methodKey, methodEntry := range pathOps {
			method := strings.ToLower(strings.TrimSpace(methodKey))
			if _, supported := supportedMethods[method]; !supported {
				continue
			}
			opMap, ok := toMap(methodEntry)
			if !ok {
				continue
			}
			ops[method] = operation{
				Responses: responseCodes(opMap["responses"]),
				Required:  requiredParams(opMap["parameters"]),
			}
		}

		if len(ops) > 0 {
			out.Paths[normalizePath(pathKey)] = ops
		}
	}
	return out, nil
}

func responseCodes(v any) map[string]struct{} {
	set := make(map[string]struct{})
	responses, ok := toMap(v)
	if !ok {
		return set
	}
	for code := range responses {
		if c := strings.ToLower(strings.TrimSpace(code)); c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

func requiredParams(v any) map[string]struct{} {
	set := make(map[string]struct{})
	params, ok := v.([]any)
	if !ok {
		return set
	}
	for _, p := range params {
		param, ok := toMap(p)
		if !ok {
			continue
		}
		if required, _ := param["required"].(bool); !required {
			continue
		}
		in, _ := param["in"].(string)
		name, _ := param["name"].(string)
		// Path params are part of the path itself.
		if in == "path" {
			continue
		}
		set[in+":"+name] = struct{}{}
	}
	return set
}

// normalizePath makes trailing slashes irrelevant, matching the router.
func normalizePath(p string) string {
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

func toMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func compare(base, revision apiDoc) []string {
	var issues []string

	for path, baseOps := range base.Paths {
		revOps, ok := revision.Paths[path]
		if !ok {
			issues = append(issues, fmt.Sprintf("removed path: %s", path))
			continue
		}

		for method, baseOp := range baseOps {
			revOp, ok := revOps[method]
			if !ok {
				issues = append(issues, fmt.Sprintf("removed operation: %s %s", strings.ToUpper(method), path))
				continue
			}

			for code := range baseOp.Responses {
				if _, ok := revOp.Responses[code]; !ok {
					issues = append(issues, fmt.Sprintf(
						"removed response code: %s %s -> %s",
						strings.ToUpper(method), path, strings.ToUpper(code),
					))
				}
			}
			for param := range revOp.Required {
				if _, ok := baseOp.Required[param]; !ok {
					issues = append(issues, fmt.Sprintf(
						"new required parameter: %s %s -> %s",
						strings.ToUpper(method), path, param,
					))
				}
			}
		}
	}

	sort.Strings(issues)
	return issues
}
