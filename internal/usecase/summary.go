package usecase

import (
	"fmt"
	"strings"

	"FeedsImporter/internal/domain"
)

func importSummary(state *domain.RunState, entityType string) []string {
	var messages []string
	if state.Created > 0 {
		messages = append(messages, fmt.Sprintf("Created %s.", plural(state.Created, entityType)))
	}
	if state.Updated > 0 {
		messages = append(messages, fmt.Sprintf("Updated %s.", plural(state.Updated, entityType)))
	}
	if state.Failed > 0 {
		messages = append(messages, fmt.Sprintf("Failed importing %s.", plural(state.Failed, entityType)))
	}
	if len(messages) == 0 {
		messages = append(messages, fmt.Sprintf("There are no new %s.", pluralNoun(entityType)))
	}
	return messages
}

func clearSummary(state *domain.RunState, entityType string) []string {
	if state.Deleted > 0 {
		return []string{fmt.Sprintf("Deleted %s.", plural(state.Deleted, entityType))}
	}
	return []string{fmt.Sprintf("There are no %s to be deleted.", pluralNoun(entityType))}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %s", n, pluralNoun(noun))
}

func pluralNoun(noun string) string {
	if strings.HasSuffix(noun, "s") {
		return noun
	}
	return noun + "s"
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
