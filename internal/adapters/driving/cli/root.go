// Package cli implements the mediafilter command line.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mediafilter/internal/core/ports/driving"
	"github.com/custodia-labs/mediafilter/internal/logger"
)

// annotationNoServices marks commands that run without opening the stores.
const annotationNoServices = "mediafilter/no-services"

var version = "dev"

// Services wired by Bootstrap. Commands check for nil before use.
var (
	mediaFilterService driving.MediaFilterService
	itemService        driving.ItemService
	settingsService    driving.SettingsService
	scheduler          driving.Scheduler
)

// Services bundles the driving ports the commands use.
type Services struct {
	MediaFilter driving.MediaFilterService
	Items       driving.ItemService
	Settings    driving.SettingsService
	Scheduler   driving.Scheduler

	// Close releases the stores behind the services.
	Close func() error
}

// Bootstrap opens the stores under home and wires the services.
type Bootstrap func(home string) (*Services, error)

var (
	bootstrap     Bootstrap
	closeServices func() error

	flagVerbose bool
	flagQuiet   bool
	flagHome    string
)

var rootCmd = &cobra.Command{
	Use:   "mediafilter",
	Short: "Derive text and thumbnails from stored bitstreams",
	Long: `mediafilter stores items made of bitstreams and runs format filters over
them. Filters extract full text from PDF, HTML, Word, Markdown, email and
plain text files, and generate JPEG thumbnails from images. Derived
bitstreams are kept next to their sources in the TEXT and THUMBNAIL bundles.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "print progress and debug logs")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress error logs")
	rootCmd.PersistentFlags().StringVar(&flagHome, "home", "", "data directory (default $MEDIAFILTER_HOME or ~/.mediafilter)")
}

// setup applies the logging flags and wires the services.
func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(flagVerbose)
	logger.SetQuiet(flagQuiet)

	if bootstrap == nil || cmd.Annotations[annotationNoServices] != "" {
		return nil
	}
	if closeServices != nil {
		// Already wired
		return nil
	}

	svc, err := bootstrap(flagHome)
	if err != nil {
		return fmt.Errorf("initialise: %w", err)
	}
	SetServices(svc)
	return nil
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	version = v
}

// SetBootstrap installs the function that wires the services before a
// command runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetServices installs the driving ports used by the commands.
func SetServices(svc *Services) {
	if svc == nil {
		return
	}
	mediaFilterService = svc.MediaFilter
	itemService = svc.Items
	settingsService = svc.Settings
	scheduler = svc.Scheduler
	closeServices = svc.Close
	if closeServices == nil {
		closeServices = func() error { return nil }
	}
}

// Execute runs the root command and releases the services.
func Execute() error {
	err := rootCmd.Execute()
	if closeServices != nil {
		if cerr := closeServices(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close: %w", cerr))
		}
		closeServices = nil
	}
	return err
}
