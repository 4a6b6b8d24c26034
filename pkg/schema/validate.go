package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "vars[2].tool")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile performs the full 3-phase validation pipeline on a recipe file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*Recipe, []*ValidationError) {
	rec, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Path:     "",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return validateLoaded(rec)
}

// Validate runs the semantic and domain phases on an already-parsed recipe.
func Validate(rec *Recipe) []*ValidationError {
	_, errs := validateLoaded(rec)
	return errs
}

func validateLoaded(rec *Recipe) (*Recipe, []*ValidationError) {
	var allErrors []*ValidationError
	allErrors = append(allErrors, validateSemantic(rec)...)
	allErrors = append(allErrors, ValidateDomain(rec)...)
	if len(allErrors) > 0 {
		return rec, allErrors
	}
	return rec, nil
}

// validateSemantic validates the recipe against the generated JSON Schema.
func validateSemantic(rec *Recipe) []*ValidationError {
	data, err := json.Marshal(rec)
	if err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("marshal for schema validation: %v", err))}
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("generate schema: %v", err))}
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("unmarshal schema: %v", err))}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("recipe-v0.json", schemaDoc); err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("add schema resource: %v", err))}
	}
	sch, err := c.Compile("recipe-v0.json")
	if err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("compile schema: %v", err))}
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("unmarshal document: %v", err))}
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
		} else {
			errs = append(errs, semanticErr(err.Error()))
		}
		return errs
	}
	return nil
}

func semanticErr(msg string) *ValidationError {
	return &ValidationError{Phase: "semantic", Path: "", Message: msg, Severity: "error"}
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain performs Phase 3 domain-level validation.
// Returns a slice of errors; empty means valid.
func ValidateDomain(rec *Recipe) []*ValidationError {
	var errs []*ValidationError

	if rec.Name == "" {
		errs = append(errs, domainErr("name", "recipe requires a name"))
	}
	if rec.Version < 1 {
		errs = append(errs, domainErr("version", fmt.Sprintf("version must be >= 1 (got %d)", rec.Version)))
	}
	if rec.UserTemplate == "" {
		errs = append(errs, domainErr("userTemplate", "recipe requires a userTemplate"))
	}

	for i, name := range rec.AllowedTools {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, domainErr(fmt.Sprintf("allowedTools[%d]", i), "empty tool name in allowedTools"))
		}
	}

	allowed := make(map[string]bool, len(rec.AllowedTools))
	for _, name := range rec.AllowedTools {
		allowed[name] = true
	}

	seen := make(map[string]bool, len(rec.Vars))
	for i, decl := range rec.Vars {
		path := fmt.Sprintf("vars[%d]", i)
		if decl.Name == "" {
			errs = append(errs, domainErr(path, "variable has no name"))
		}
		if seen[decl.Name] {
			errs = append(errs, domainErr(path, fmt.Sprintf("duplicate variable %q", decl.Name)))
		}
		seen[decl.Name] = true

		if decl.Call.Tool == "" {
			errs = append(errs, domainErr(path+".tool", fmt.Sprintf("variable %q has no tool", decl.Name)))
		} else if len(allowed) > 0 && !allowed[decl.Call.Tool] {
			errs = append(errs, domainErr(path+".tool",
				fmt.Sprintf("variable %q calls tool %q which is not in allowedTools", decl.Name, decl.Call.Tool)))
		}

		errs = append(errs, checkCondition(path+".when", decl.Call.When)...)
	}

	for i, pa := range rec.PostActions {
		path := fmt.Sprintf("postActions[%d]", i)
		if pa.Tool == "" {
			errs = append(errs, domainErr(path+".tool", "post-action has no tool"))
		} else if len(allowed) > 0 && !allowed[pa.Tool] {
			errs = append(errs, domainErr(path+".tool",
				fmt.Sprintf("post-action calls tool %q which is not in allowedTools", pa.Tool)))
		}
		errs = append(errs, checkCondition(path+".when", pa.When)...)
	}

	return errs
}

// checkCondition compiles a when: expression to catch syntax errors at
// validation time rather than mid-run. Unknown identifiers stay legal —
// bindings only exist at execution time — so compilation uses no typed env.
func checkCondition(path, cond string) []*ValidationError {
	if strings.TrimSpace(cond) == "" {
		return nil
	}
	if _, err := expr.Compile(cond); err != nil {
		return []*ValidationError{domainErr(path, fmt.Sprintf("invalid when condition %q: %v", cond, err))}
	}
	return nil
}

func domainErr(path, msg string) *ValidationError {
	return &ValidationError{Phase: "domain", Path: path, Message: msg, Severity: "error"}
}
