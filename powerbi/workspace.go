// ABOUTME: Lists the reports and datasets of a workspace.
// ABOUTME: The short forms map display name to id and hide the service's usage-metrics artifacts.

package powerbi

import "context"

type Report struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	WebURL    string `json:"webUrl"`
	EmbedURL  string `json:"embedUrl"`
	DatasetID string `json:"datasetId"`
}

type Dataset struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ConfiguredBy  string `json:"configuredBy"`
	IsRefreshable bool   `json:"isRefreshable"`
	WebURL        string `json:"webUrl"`
}

// Usage metrics reports and models are generated by the service and hidden in the UI.
var (
	hiddenReports = map[string]bool{
		"Report Usage Metrics Report": true,
		"Usage Metrics Report":        true,
		"Reports usage metrics (UM)":  true,
	}
	hiddenDatasets = map[string]bool{
		"Report Usage Metrics Model": true,
		"Usage Metrics Report":       true,
	}
)

func (c *Client) Reports(ctx context.Context) ([]Report, error) {
	return getCollection[Report](ctx, c, "retrieve reports", c.groupPath("reports"))
}

// ReportIDs returns report name to id, without usage metrics reports.
func (c *Client) ReportIDs(ctx context.Context) (map[string]string, error) {
	reports, err := c.Reports(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]string, len(reports))
	for _, r := range reports {
		if hiddenReports[r.Name] {
			continue
		}
		ids[r.Name] = r.ID
	}
	return ids, nil
}

func (c *Client) Datasets(ctx context.Context) ([]Dataset, error) {
	return getCollection[Dataset](ctx, c, "retrieve datasets", c.groupPath("datasets"))
}

// DatasetIDs returns dataset name to id, without usage metrics models.
func (c *Client) DatasetIDs(ctx context.Context) (map[string]string, error) {
	datasets, err := c.Datasets(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]string, len(datasets))
	for _, d := range datasets {
		if hiddenDatasets[d.Name] {
			continue
		}
		ids[d.Name] = d.ID
	}
	return ids, nil
}
