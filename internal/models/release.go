package models

// JiraVersion is one entry of GET /rest/api/3/project/{key}/versions.
type JiraVersion struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Released    bool   `json:"released"`
	Archived    bool   `json:"archived"`
	ReleaseDate string `json:"releaseDate"`
	ProjectID   int    `json:"projectId"`
}

// JiraSprint is one entry of the agile board sprint listing.
type JiraSprint struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	State         string `json:"state"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	Goal          string `json:"goal"`
	OriginBoardID int    `json:"originBoardId"`
}

// WikiPage is one result of the wiki content search.
type WikiPage struct {
	ID     string     `json:"id"`
	Type   string     `json:"type"`
	Status string     `json:"status"`
	Title  string     `json:"title"`
	Links  *WikiLinks `json:"_links"`
}

type WikiLinks struct {
	WebUI string `json:"webui"`
}
