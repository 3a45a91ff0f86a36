package scaffold

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"
)

// templateSuffix marks files rendered through text/template.
const templateSuffix = ".tmpl"

// excludedNames are never copied out of a template tree.
var excludedNames = map[string]bool{
	"node_modules": true,
	".git":         true,
	".DS_Store":    true,
}

var unsafeModuleChars = regexp.MustCompile(`[^a-z0-9._/-]+`)

// ProjectData holds the variables available to .tmpl files.
type ProjectData struct {
	Name       string // e.g., "newproj", from the target directory's base name
	ModuleName string // Go module path for the generated go.mod
	Template   string // template name from its manifest, may be empty
	Year       int
}

// NewProjectData derives template variables from the target directory.
func NewProjectData(targetDir, templateName string) *ProjectData {
	name := filepath.Base(filepath.Clean(targetDir))
	module := unsafeModuleChars.ReplaceAllString(strings.ToLower(name), "-")
	return &ProjectData{
		Name:       name,
		ModuleName: module,
		Template:   templateName,
		Year:       time.Now().Year(),
	}
}

// Options controls a Copy.
type Options struct {
	// Exclude lists slash-separated paths, relative to the template root,
	// that are skipped.
	Exclude []string
}

// Result holds the outcome of a Copy.
type Result struct {
	OutputDir string
	Files     []string // slash-separated, relative to OutputDir
	Rendered  int      // how many of Files came from .tmpl sources
}

// Copy copies the template tree at src into dst, creating dst if needed.
// Existing files in dst with the same name are overwritten. Symlinks are
// followed: a link to a file is copied as that file's content, a link to a
// directory as a copy of that directory. Dangling links and link cycles are
// errors.
func Copy(src, dst string, data *ProjectData, opts Options) (*Result, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("template source: %w", err)
	}
	if !srcInfo.IsDir() {
		return nil, fmt.Errorf("template source %s is not a directory", src)
	}
	realSrc, err := filepath.EvalSymlinks(src)
	if err != nil {
		return nil, fmt.Errorf("template source: %w", err)
	}

	c := &copier{
		data:     data,
		skip:     make(map[string]bool, len(opts.Exclude)),
		visiting: map[string]bool{realSrc: true},
		result:   &Result{OutputDir: dst},
	}
	for _, e := range opts.Exclude {
		c.skip[filepath.ToSlash(filepath.Clean(e))] = true
	}

	if err := c.copyTree(realSrc, dst, ""); err != nil {
		return nil, err
	}
	return c.result, nil
}

type copier struct {
	data *ProjectData
	skip map[string]bool
	// visiting holds the resolved directories entered through symlinks on
	// the current descent, plus the template root.
	visiting map[string]bool
	result   *Result
}

// copyTree copies src into dst. prefix is src's slash-separated path
// relative to the template root, used for exclusions.
func (c *copier) copyTree(src, dst, prefix string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		templateRel := filepath.ToSlash(filepath.Join(prefix, rel))

		if rel != "." && (excludedNames[d.Name()] || c.skip[templateRel]) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			return c.copyLink(path, target, templateRel)
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case d.Type().IsRegular():
			return c.copyFile(path, target)
		}
		// Sockets, devices and pipes are skipped.
		return nil
	})
}

func (c *copier) copyLink(link, target, templateRel string) error {
	info, err := os.Stat(link)
	if err != nil {
		return fmt.Errorf("following symlink %s: %w", link, err)
	}
	switch {
	case info.Mode().IsRegular():
		return c.copyFile(link, target)
	case info.IsDir():
		resolved, err := filepath.EvalSymlinks(link)
		if err != nil {
			return fmt.Errorf("following symlink %s: %w", link, err)
		}
		if c.visiting[resolved] {
			return fmt.Errorf("symlink cycle at %s", link)
		}
		c.visiting[resolved] = true
		defer delete(c.visiting, resolved)
		return c.copyTree(resolved, target, templateRel)
	}
	return nil
}

func (c *copier) copyFile(src, target string) error {
	written, rendered, err := copyEntry(src, target, c.data)
	if err != nil {
		return err
	}
	relOut, err := filepath.Rel(c.result.OutputDir, written)
	if err != nil {
		return err
	}
	c.result.Files = append(c.result.Files, filepath.ToSlash(relOut))
	if rendered {
		c.result.Rendered++
	}
	return nil
}

// copyEntry writes one template file and returns the path it produced.
func copyEntry(src, dst string, data *ProjectData) (string, bool, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", false, err
	}
	content, err := os.ReadFile(src)
	if err != nil {
		return "", false, err
	}

	if !strings.HasSuffix(src, templateSuffix) {
		return dst, false, os.WriteFile(dst, content, info.Mode().Perm())
	}

	tmpl, err := template.New(filepath.Base(src)).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return "", false, fmt.Errorf("parsing template %s: %w", src, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", false, fmt.Errorf("executing template %s: %w", src, err)
	}

	out := strings.TrimSuffix(dst, templateSuffix)
	return out, true, os.WriteFile(out, buf.Bytes(), info.Mode().Perm())
}
