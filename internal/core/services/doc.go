// Package services implements the driving port interfaces.
//
// MediaFilterManager walks items and hands each original bitstream to the
// format filters registered for its format. ItemService imports and reads
// content, SettingsService edits the config file and Scheduler repeats
// media filter runs on an interval.
//
// Services only talk to infrastructure through driven ports.
package services
