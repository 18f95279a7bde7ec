package udptracker

type action int32

// UDP tracker Actions
const (
	actionConnect  action = 0
	actionAnnounce action = 1
	actionScrape   action = 2
	actionError    action = 3
)

func (a action) String() string {
	switch a {
	case actionConnect:
		return "connect"
	case actionAnnounce:
		return "announce"
	case actionScrape:
		return "scrape"
	case actionError:
		return "error"
	default:
		return "unknown"
	}
}
