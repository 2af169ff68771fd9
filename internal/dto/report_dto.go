package dto

type CreateReportRequest struct {
	Title       string `json:"title"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Password    string `json:"password"`
}

type CloseReportRequest struct {
	Password string `json:"password"`
}

type CreateCommentRequest struct {
	Content string `json:"content"`
}
