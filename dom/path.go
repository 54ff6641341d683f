package dom

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var (
	ErrBadPath      = errors.New("dom: malformed path")
	ErrPathNotFound = errors.New("dom: path not found")
)

// BuildPath returns the structural path of n relative to root, of the
// form /div[2]/p[1]/text()[3]. Element steps index among same-tag
// siblings, text() steps among text-node siblings, both 1-based.
func BuildPath(root, n *html.Node) (string, error) {
	var steps []string
	for cur := n; cur != nil && cur != root; cur = cur.Parent {
		switch cur.Type {
		case html.TextNode:
			idx := 1
			for s := cur.PrevSibling; s != nil; s = s.PrevSibling {
				if s.Type == html.TextNode {
					idx++
				}
			}
			steps = append(steps, fmt.Sprintf("text()[%d]", idx))
		case html.ElementNode:
			idx := 1
			for s := cur.PrevSibling; s != nil; s = s.PrevSibling {
				if s.Type == html.ElementNode && s.Data == cur.Data {
					idx++
				}
			}
			steps = append(steps, fmt.Sprintf("%s[%d]", cur.Data, idx))
		default:
			return "", fmt.Errorf("dom: build path: unsupported node type %d", cur.Type)
		}
		if cur.Parent == nil {
			return "", fmt.Errorf("dom: build path: node not under root")
		}
	}
	if len(steps) == 0 {
		return "", fmt.Errorf("dom: build path: node is root")
	}
	var b strings.Builder
	for i := len(steps) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(steps[i])
	}
	return b.String(), nil
}

// ResolvePath walks a structural path from root back to a node.
func ResolvePath(root *html.Node, path string) (*html.Node, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("dom: resolve %q: %w", path, ErrBadPath)
	}
	cur := root
	for _, step := range strings.Split(path[1:], "/") {
		name, idx, err := parseStep(step)
		if err != nil {
			return nil, fmt.Errorf("dom: resolve %q: %w", path, err)
		}
		var next *html.Node
		count := 0
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			if name == "text()" {
				if c.Type != html.TextNode {
					continue
				}
			} else {
				if c.Type != html.ElementNode || c.Data != name {
					continue
				}
			}
			count++
			if count == idx {
				next = c
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("dom: resolve %q: step %s: %w", path, step, ErrPathNotFound)
		}
		cur = next
	}
	return cur, nil
}

func parseStep(step string) (name string, idx int, err error) {
	open := strings.IndexByte(step, '[')
	if open <= 0 || !strings.HasSuffix(step, "]") {
		return "", 0, ErrBadPath
	}
	name = step[:open]
	idx, err = strconv.Atoi(step[open+1 : len(step)-1])
	if err != nil || idx < 1 {
		return "", 0, ErrBadPath
	}
	return name, idx, nil
}
