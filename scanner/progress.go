package scanner

import (
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
)

// NewProgressBar returns a spinner style bar on stderr that counts finished
// files. It stays hidden when DIRDIFF_DISABLE_PROGRESS is set.
func NewProgressBar(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetVisibility(progressVisible()),
		progressbar.OptionFullWidth(),
		progressbar.OptionClearOnFinish(),
	)
}

func progressVisible() bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv("DIRDIFF_DISABLE_PROGRESS")))
	return value != "1" && value != "true" && value != "yes" && value != "on"
}
