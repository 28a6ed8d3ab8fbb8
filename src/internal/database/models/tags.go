package models

import "strings"

// splitTagList splits a comma separated tag column into trimmed values.
func splitTagList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

// JoinTagList renders a tag slice back into the comma separated column form.
func JoinTagList(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		clean = append(clean, tag)
	}
	return strings.Join(clean, ", ")
}
