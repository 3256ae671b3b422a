package report

import (
	"bytes"
	"html/template"
	"time"

	"github.com/jiin/lookout/internal/analyzer"
	"github.com/jiin/lookout/internal/models"
)

// ReportData contains all data for report generation
type ReportData struct {
	TargetName      string
	GeneratedAt     time.Time
	Range           string
	DataPoints      int
	Summary         ReportSummary
	Recommendations []analyzer.Recommendation
	Anomalies       []analyzer.Anomaly
	Comparison      *analyzer.PeriodComparisonResult
	RecentEvents    []models.StatusEvent
}

// ReportSummary contains summary statistics
type ReportSummary struct {
	UptimePercent   float64
	AvgLatencyMs    float64
	TotalChecks     int
	FailedChecks    int
	DowntimeMinutes float64
	LastStatus      string
	RiskLevel       string
}

// BuildReportData builds report data from target history and analysis
// results
func BuildReportData(targetName, rangeStr string, stats models.UptimeStats, events []models.StatusEvent,
	downtime time.Duration, recs *analyzer.AnalysisResult,
	anomalies *analyzer.AnomalyResult, comparison *analyzer.PeriodComparisonResult) *ReportData {

	data := &ReportData{
		TargetName:  targetName,
		GeneratedAt: time.Now(),
		Range:       rangeStr,
		DataPoints:  len(events),
		Summary: ReportSummary{
			UptimePercent:   stats.UptimePercentage,
			AvgLatencyMs:    stats.AverageLatencyMs,
			TotalChecks:     stats.TotalChecks,
			FailedChecks:    stats.FailedChecks,
			DowntimeMinutes: downtime.Minutes(),
			LastStatus:      stats.LastStatus,
		},
	}

	if recs != nil {
		data.Recommendations = recs.Recommendations
	}

	if anomalies != nil {
		data.Anomalies = anomalies.Anomalies
		data.Summary.RiskLevel = anomalies.RiskLevel
	}

	data.Comparison = comparison

	// Most recent events only; the store hands them out newest first
	const maxEvents = 20
	if len(events) > maxEvents {
		events = events[:maxEvents]
	}
	data.RecentEvents = events

	return data
}

// GenerateHTMLReport generates an HTML report
func GenerateHTMLReport(data *ReportData) ([]byte, error) {
	tmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

const reportTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Lookout Report - {{.TargetName}}</title>
    <style>
        * { box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            margin: 0;
            padding: 20px;
            background: #f3f4f6;
            color: #111827;
        }
        .container {
            max-width: 900px;
            margin: 0 auto;
            background: white;
            border-radius: 12px;
            box-shadow: 0 4px 6px rgba(0,0,0,0.1);
            padding: 40px;
        }
        h1 {
            color: #111827;
            margin: 0 0 8px 0;
            font-size: 28px;
        }
        h2 {
            color: #374151;
            border-bottom: 2px solid #e5e7eb;
            padding-bottom: 8px;
            margin-top: 32px;
            font-size: 18px;
        }
        .subtitle {
            color: #6b7280;
            font-size: 14px;
            margin-bottom: 24px;
        }
        .stat-grid {
            display: grid;
            grid-template-columns: repeat(4, 1fr);
            gap: 16px;
            margin: 20px 0;
        }
        .stat-card {
            background: #f9fafb;
            border-radius: 8px;
            padding: 16px;
            text-align: center;
        }
        .stat-value {
            font-size: 28px;
            font-weight: bold;
            color: #111827;
        }
        .stat-label {
            font-size: 12px;
            color: #6b7280;
            margin-top: 4px;
        }
        .recommendation {
            padding: 14px;
            margin: 10px 0;
            border-radius: 8px;
            border-left: 4px solid;
        }
        .rec-critical {
            background: #fee2e2;
            border-color: #ef4444;
        }
        .rec-warning {
            background: #fef3c7;
            border-color: #f59e0b;
        }
        .rec-info {
            background: #dbeafe;
            border-color: #3b82f6;
        }
        .rec-type {
            font-weight: 600;
            color: #374151;
            font-size: 14px;
        }
        .rec-reason {
            font-size: 13px;
            color: #4b5563;
            margin-top: 6px;
        }
        .rec-values {
            font-size: 12px;
            color: #6b7280;
            margin-top: 6px;
        }
        .anomaly {
            padding: 10px 14px;
            margin: 8px 0;
            border-radius: 6px;
            font-size: 13px;
        }
        .anomaly-critical { background: #fee2e2; }
        .anomaly-warning { background: #fef3c7; }
        .anomaly-type { font-weight: 600; }
        .event-row {
            display: flex;
            justify-content: space-between;
            padding: 8px 14px;
            margin: 4px 0;
            border-radius: 6px;
            font-size: 13px;
            background: #f9fafb;
        }
        .footer {
            margin-top: 40px;
            padding-top: 20px;
            border-top: 1px solid #e5e7eb;
            color: #9ca3af;
            font-size: 12px;
            text-align: center;
        }
        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 9999px;
            font-size: 12px;
            font-weight: 500;
        }
        .badge-operational { background: #dcfce7; color: #166534; }
        .badge-degraded { background: #fef3c7; color: #92400e; }
        .badge-down { background: #fee2e2; color: #991b1b; }
        .badge-normal { background: #dcfce7; color: #166534; }
        .badge-elevated { background: #fef3c7; color: #92400e; }
        .badge-high { background: #fee2e2; color: #991b1b; }
        .badge-unknown { background: #e5e7eb; color: #374151; }
        .no-data {
            padding: 20px;
            background: #f9fafb;
            border-radius: 8px;
            color: #6b7280;
            text-align: center;
        }
        @media print {
            body { background: white; padding: 0; }
            .container { box-shadow: none; }
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>Uptime Report</h1>
        <div class="subtitle">
            <strong>Target:</strong> {{.TargetName}} |
            <strong>Generated:</strong> {{.GeneratedAt.Format "2006-01-02 15:04:05"}} |
            <strong>Range:</strong> {{.Range}} |
            <strong>Events:</strong> {{.DataPoints}}
        </div>

        <h2>Summary</h2>
        <div class="stat-grid">
            <div class="stat-card">
                <div class="stat-value">{{printf "%.1f" .Summary.UptimePercent}}%</div>
                <div class="stat-label">Uptime</div>
            </div>
            <div class="stat-card">
                <div class="stat-value">{{printf "%.0f" .Summary.AvgLatencyMs}}ms</div>
                <div class="stat-label">Avg Response</div>
            </div>
            <div class="stat-card">
                <div class="stat-value">{{printf "%.0f" .Summary.DowntimeMinutes}}m</div>
                <div class="stat-label">Downtime</div>
            </div>
            <div class="stat-card">
                <div class="stat-value">
                    <span class="badge badge-{{if .Summary.RiskLevel}}{{.Summary.RiskLevel}}{{else}}unknown{{end}}">
                        {{if .Summary.RiskLevel}}{{.Summary.RiskLevel}}{{else}}unknown{{end}}
                    </span>
                </div>
                <div class="stat-label">Risk Level</div>
            </div>
        </div>
        <div class="stat-grid">
            <div class="stat-card">
                <div class="stat-value">{{.Summary.TotalChecks}}</div>
                <div class="stat-label">Total Checks</div>
            </div>
            <div class="stat-card">
                <div class="stat-value">{{.Summary.FailedChecks}}</div>
                <div class="stat-label">Failed Checks</div>
            </div>
            <div class="stat-card">
                <div class="stat-value">
                    <span class="badge badge-{{.Summary.LastStatus}}">{{.Summary.LastStatus}}</span>
                </div>
                <div class="stat-label">Last Status</div>
            </div>
            <div class="stat-card">
                <div class="stat-value">{{.DataPoints}}</div>
                <div class="stat-label">Events</div>
            </div>
        </div>

        {{if .Comparison}}
        <h2>Versus Previous {{.Comparison.Period}}</h2>
        <div class="stat-grid">
            <div class="stat-card">
                <div class="stat-value">{{printf "%+.1f" .Comparison.Changes.UptimeChange}}%</div>
                <div class="stat-label">Uptime Change</div>
            </div>
            <div class="stat-card">
                <div class="stat-value">{{printf "%+.1f" .Comparison.Changes.LatencyChange}}%</div>
                <div class="stat-label">Latency Change</div>
            </div>
            <div class="stat-card">
                <div class="stat-value">{{printf "%+d" .Comparison.Changes.FailureChange}}</div>
                <div class="stat-label">Failure Change</div>
            </div>
            <div class="stat-card">
                <div class="stat-value">{{.Comparison.Changes.Trend}}</div>
                <div class="stat-label">Trend</div>
            </div>
        </div>
        {{end}}

        <h2>Recommendations</h2>
        {{if .Recommendations}}
        {{range .Recommendations}}
        <div class="recommendation rec-{{.Severity}}">
            <div class="rec-type">{{.Type}}</div>
            <div class="rec-reason">{{.Reason}}</div>
            {{if ne .Current .Recommended}}
            <div class="rec-values">{{.Current}} → <strong>{{.Recommended}}</strong></div>
            {{end}}
        </div>
        {{end}}
        {{else}}
        <div class="no-data">No recommendations at this time</div>
        {{end}}

        {{if .Anomalies}}
        <h2>Anomalies ({{len .Anomalies}})</h2>
        {{range .Anomalies}}
        <div class="anomaly anomaly-{{.Severity}}">
            <span class="anomaly-type">{{.Type}}</span>: {{.Message}}
            <span style="color: #6b7280;">({{.Timestamp.Format "15:04"}})</span>
        </div>
        {{end}}
        {{end}}

        {{if .RecentEvents}}
        <h2>Recent Events</h2>
        {{range .RecentEvents}}
        <div class="event-row">
            <span>{{.Time.Format "2006-01-02 15:04:05"}}</span>
            <span class="badge badge-{{.Status}}">{{.Status}}</span>
            <span>{{.LatencyMs}}ms</span>
        </div>
        {{end}}
        {{end}}

        <div class="footer">
            Generated by <strong>Lookout</strong> - Infrastructure Monitor
        </div>
    </div>
</body>
</html>`
