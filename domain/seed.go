package domain

// SeedTask is one entry of the starter dataset.
type SeedTask struct {
	ID     string
	Fields TaskFields
}

func seed(id, title, description, assignee, priority, column string, labels ...string) SeedTask {
	return SeedTask{
		ID: id,
		Fields: TaskFields{
			Title:       &title,
			Description: &description,
			Assignee:    &assignee,
			Priority:    priority,
			Labels:      labels,
			Column:      column,
		},
	}
}

// SeedTasks returns a fresh copy of the starter board.
func SeedTasks() []SeedTask {
	return []SeedTask{
		seed("task-gh-connect", "Connect GitHub (33 repos)",
			"Connected GitHub with full access to public and private repos",
			"hanna", "high", "done", "setup", "github"),
		seed("task-ai-toolkit-feature", "Add Recently Added feature to ai-toolkit-directory",
			"Created feature branch with recently added section, quick filters, and usage tracking",
			"hanna", "high", "done", "feature", "ai-toolkit"),
		seed("task-repo-audit", "Full repo audit (33 repos)",
			"Audited all repos, identified active vs orphaned, made recommendations",
			"hanna", "high", "done", "audit", "github"),
		seed("task-kanban-board", "Create Kanban board",
			"Built and deployed Kanban board for task management",
			"hanna", "high", "done", "feature", "tools"),
		seed("task-ai-toolkit-pr", "Review ai-toolkit-directory PR",
			"Feature branch feat/clawd-recently-added needs review and merge",
			"chuck", "high", "review", "pr", "review"),
		seed("task-stitchmaster", "Improve stitchmaster app",
			"Add preset templates, prompt history, and export options",
			"hanna", "medium", "inprogress", "feature", "stitchmaster"),
		seed("task-reengagepro", "Explore ReEngage Pro code",
			"Review reengagepro2 repository for improvement opportunities",
			"hanna", "high", "backlog", "review", "reengagepro"),
		seed("task-daily-checkin", "Set up daily GitHub check-in",
			"Configure cron job or manual daily review of repos",
			"hanna", "medium", "backlog", "automation", "github"),
	}
}
