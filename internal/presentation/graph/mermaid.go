package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
)

// GenerateMermaid produces a Mermaid flowchart from a store layout.
// The state tree is drawn top-down from the store root: branches as
// rectangles, leaves as stadiums. Each action type tag appears as a
// parallelogram with a dotted arrow to every leaf it updates, so tag
// fan-out is visible at a glance.
func GenerateMermaid(entries []domain.LayoutEntry) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    store((\"store\"))\n")

	declared := make(map[string]bool)
	for _, e := range entries {
		segments := domain.SplitPath(e.Selector)
		parent := "store"
		for i, seg := range segments {
			id := sanitizeMermaidID(domain.JoinPath(segments[:i+1]))
			if !declared[id] {
				declared[id] = true
				if i == len(segments)-1 {
					sb.WriteString(fmt.Sprintf("    %s([\"%s\"])\n", id, seg))
				} else {
					sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", id, seg))
				}
			}
			edge := "edge:" + parent + ">" + id
			if !declared[edge] {
				declared[edge] = true
				sb.WriteString(fmt.Sprintf("    %s --> %s\n", parent, id))
			}
			parent = id
		}
	}

	for _, e := range entries {
		leafID := sanitizeMermaidID(e.Selector)
		for _, tag := range e.Types {
			tagID := "act_" + sanitizeMermaidID(tag)
			if !declared[tagID] {
				declared[tagID] = true
				sb.WriteString(fmt.Sprintf("    %s[/\"%s\"/]\n", tagID, tag))
			}
			arrow := "edge:" + tagID + ">" + leafID
			if !declared[arrow] {
				declared[arrow] = true
				sb.WriteString(fmt.Sprintf("    %s -.-> %s\n", tagID, leafID))
			}
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "#", "_")
	return s
}
