package phantombuster

type launchRequest struct {
	ID       string         `json:"id"`
	Argument map[string]any `json:"argument"`
}

type launchResponse struct {
	ContainerID string `json:"containerId"`
}

type outputResponse struct {
	Output string `json:"output"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
