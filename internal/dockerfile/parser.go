// Package dockerfile extracts base image references from Dockerfiles.
package dockerfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/parser"
	"github.com/moby/buildkit/frontend/dockerfile/shell"
)

const scratchImage = "scratch"

// ParseBaseImages returns the image reference of every FROM instruction in
// the Dockerfile read from r, in file order and without deduplication.
// References to earlier build stages and to scratch are omitted. Global ARG
// defaults declared before the first FROM are substituted into references;
// a reference that cannot be fully resolved is returned as written.
func ParseBaseImages(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading Dockerfile: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []string{}, nil
	}

	res, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		if isEmptyFileError(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("error parsing Dockerfile: %w", err)
	}

	lex := shell.NewLex(res.EscapeToken)
	args := buildArgs{}
	stages := map[string]struct{}{}
	seenFrom := false
	images := []string{}

	for _, node := range res.AST.Children {
		switch strings.ToLower(node.Value) {
		case "arg":
			// Only global ARGs are in scope for FROM.
			if !seenFrom {
				args.declare(node)
			}
		case "from":
			seenFrom = true
			if node.Next == nil {
				continue
			}
			ref := args.expand(lex, node.Next.Value)
			_, isStage := stages[strings.ToLower(ref)]
			if !isStage && !strings.EqualFold(ref, scratchImage) {
				images = append(images, ref)
			}
			// A stage only becomes referenceable by the FROMs after it.
			if alias := stageAlias(node); alias != "" {
				stages[strings.ToLower(alias)] = struct{}{}
			}
		}
	}
	return images, nil
}

// ParseBaseImagesFile is like ParseBaseImages but reads the Dockerfile at
// path. A missing file yields an empty result rather than an error.
func ParseBaseImagesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	defer f.Close()
	return ParseBaseImages(f)
}

// stageAlias returns the stage name introduced by "FROM <image> AS <name>",
// if there is one.
func stageAlias(node *parser.Node) string {
	image := node.Next
	if image.Next == nil || !strings.EqualFold(image.Next.Value, "as") {
		return ""
	}
	if image.Next.Next == nil {
		return ""
	}
	return image.Next.Next.Value
}

func isEmptyFileError(err error) bool {
	return strings.Contains(err.Error(), "file with no instructions")
}

// buildArgs holds the global ARG defaults of a Dockerfile and satisfies
// shell.EnvGetter.
type buildArgs map[string]string

func (b buildArgs) declare(node *parser.Node) {
	for n := node.Next; n != nil; n = n.Next {
		name, value, hasDefault := strings.Cut(n.Value, "=")
		if !hasDefault {
			continue
		}
		b[name] = strings.Trim(value, `"'`)
	}
}

func (b buildArgs) Get(key string) (string, bool) {
	v, ok := b[key]
	return v, ok
}

func (b buildArgs) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	return keys
}

func (b buildArgs) expand(lex *shell.Lex, word string) string {
	if !strings.Contains(word, "$") {
		return word
	}
	expanded, _, err := lex.ProcessWord(word, b)
	if err != nil || expanded == "" {
		return word
	}
	return expanded
}
