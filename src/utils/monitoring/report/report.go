package report

type Report struct {
	Run         *RunReport         `json:"run,omitempty"`
	DrawAuction *DrawAuctionReport `json:"draw_auction,omitempty"`
}
