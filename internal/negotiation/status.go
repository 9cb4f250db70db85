package negotiation

// DealStatus is the negotiation outcome as seen by the client.
type DealStatus string

const (
	StatusPending  DealStatus = "pending"
	StatusAccepted DealStatus = "accepted"
	StatusRejected DealStatus = "rejected"
)

func (s DealStatus) String() string {
	return string(s)
}
