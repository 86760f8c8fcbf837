package version

import tea "github.com/charmbracelet/bubbletea"

// UpdateAvailableMsg is sent when a new version is available.
type UpdateAvailableMsg struct {
	CurrentVersion string
	LatestVersion  string
	UpdateCommand  string
}

// CheckAsync returns a Bubble Tea command that checks for updates in background.
// It yields nil when the build is current or the check fails.
func CheckAsync(currentVersion string) tea.Cmd {
	return func() tea.Msg {
		result := CheckCached(currentVersion)
		if !result.HasUpdate {
			return nil
		}
		return UpdateAvailableMsg{
			CurrentVersion: currentVersion,
			LatestVersion:  result.LatestVersion,
			UpdateCommand:  UpdateCommand(result.LatestVersion),
		}
	}
}
