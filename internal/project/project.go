package project

import (
	"encoding/json"
	"math"
)

// Status is a project's lifecycle state.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusDormant    Status = "dormant"
	StatusPlanning   Status = "planning"
	StatusComplete   Status = "complete"
)

// Priority ranks projects on the dashboard.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Project is one entry of the static project list.
type Project struct {
	ID                      string   `json:"id"`
	Name                    string   `json:"name"`
	Status                  Status   `json:"status"`
	Description             string   `json:"description"`
	Progress                int      `json:"progress"`
	HoursSpent              float64  `json:"hoursSpent"`
	EstimatedHoursRemaining float64  `json:"estimatedHoursRemaining"`
	RevenueModel            string   `json:"revenueModel"`
	EstimatedMonthlyRevenue float64  `json:"estimatedMonthlyRevenue"`
	ActualMonthlyRevenue    float64  `json:"actualMonthlyRevenue"`
	Priority                Priority `json:"priority"`
	Blockers                []string `json:"blockers"`
	NextSteps               []string `json:"nextSteps"`
}

// Metadata is the summary block stored alongside the project list.
// Milestones are passed through untouched.
type Metadata struct {
	TotalHoursSpent              float64           `json:"totalHoursSpent"`
	TotalEstimatedHours          float64           `json:"totalEstimatedHours"`
	EstimatedTotalMonthlyRevenue float64           `json:"estimatedTotalMonthlyRevenue"`
	CriticalProjects             []string          `json:"criticalProjects"`
	NextMilestones               []json.RawMessage `json:"nextMilestones"`
}

// Document is the project file as stored on disk.
type Document struct {
	LastUpdated string    `json:"lastUpdated"`
	Projects    []Project `json:"projects"`
	Metadata    Metadata  `json:"metadata"`
}

// EmptyDocument is the zero-valued document with non-nil collections, so
// it encodes as empty arrays rather than nulls.
func EmptyDocument(lastUpdated string) Document {
	return Document{
		LastUpdated: lastUpdated,
		Projects:    []Project{},
		Metadata: Metadata{
			CriticalProjects: []string{},
			NextMilestones:   []json.RawMessage{},
		},
	}
}

// Metrics are the dashboard header figures.
type Metrics struct {
	TotalHours                   float64 `json:"totalHours"`
	AverageProgress              int     `json:"averageProgress"`
	EstimatedTotalMonthlyRevenue float64 `json:"estimatedTotalMonthlyRevenue"`
	ActiveProjectCount           int     `json:"activeProjectCount"`
}

// ComputeMetrics reduces projects to header metrics. The reduction is
// order independent. An empty list has an average progress of 0.
func ComputeMetrics(projects []Project) Metrics {
	var (
		m             Metrics
		totalProgress int
	)
	for _, p := range projects {
		m.TotalHours += p.HoursSpent
		m.EstimatedTotalMonthlyRevenue += p.EstimatedMonthlyRevenue
		totalProgress += p.Progress
		if p.Status == StatusInProgress {
			m.ActiveProjectCount++
		}
	}
	if len(projects) > 0 {
		m.AverageProgress = int(math.Round(float64(totalProgress) / float64(len(projects))))
	}
	return m
}

// normalize replaces nil collections with empty ones.
func (d *Document) normalize() {
	if d.Projects == nil {
		d.Projects = []Project{}
	}
	for i := range d.Projects {
		if d.Projects[i].Blockers == nil {
			d.Projects[i].Blockers = []string{}
		}
		if d.Projects[i].NextSteps == nil {
			d.Projects[i].NextSteps = []string{}
		}
	}
	if d.Metadata.CriticalProjects == nil {
		d.Metadata.CriticalProjects = []string{}
	}
	if d.Metadata.NextMilestones == nil {
		d.Metadata.NextMilestones = []json.RawMessage{}
	}
}
