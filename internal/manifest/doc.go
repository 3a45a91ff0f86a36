// Package manifest handles parsing and validation of template manifests
// (template.yaml). A manifest is optional; when present it names the template,
// may override the frontend directory, and lists tool version constraints that
// the doctor command checks.
package manifest
