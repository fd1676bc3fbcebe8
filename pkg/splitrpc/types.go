package splitrpc

// SplitRequest is the body of POST /split-order
type SplitRequest struct {
	OriginalOrderID uint `json:"original_order_id" binding:"required"`
}

// StoreResult is the outcome for one vendor group
type StoreResult struct {
	StoreName string `json:"store_name" validate:"required"`
	Success   bool   `json:"success"`
	OrderID   *uint  `json:"order_id,omitempty" validate:"required_if=Success true"`
	Error     string `json:"error,omitempty"`
}

// SplitResponse is the body returned by the split procedure
type SplitResponse struct {
	Success          bool          `json:"success"`
	SuccessfulSplits int           `json:"successful_splits" validate:"gte=0,ltefield=TotalStores"`
	TotalStores      int           `json:"total_stores" validate:"gte=0"`
	Results          []StoreResult `json:"results" validate:"dive"`
}
