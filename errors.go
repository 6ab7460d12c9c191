// errors.go: structured error definitions for the text replacer engine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	stderrors "errors"
	"fmt"

	"github.com/agilira/go-errors"
)

// Error codes for the text replacer engine
const (
	// Discovery faults (1000-1099)
	ErrCodeArtifactUnreadable = "DISCOVERY_1001"
	ErrCodeCandidateInvalid   = "DISCOVERY_1002"
	ErrCodeDuplicateFactory   = "DISCOVERY_1003"
	ErrCodeUnknownModule      = "DISCOVERY_1004"
	ErrCodeFactoryFailed      = "DISCOVERY_1005"

	// Lifecycle faults (1100-1199)
	ErrCodeInvalidIdentifier   = "LIFECYCLE_1101"
	ErrCodeDuplicateIdentifier = "LIFECYCLE_1102"
	ErrCodeDataDirectory       = "LIFECYCLE_1103"
	ErrCodeEnableFailed        = "LIFECYCLE_1104"
	ErrCodeDisableFailed       = "LIFECYCLE_1105"

	// Request faults (1200-1299)
	ErrCodeRequestFailed  = "REQUEST_1201"
	ErrCodeRequestTimeout = "REQUEST_1202"
	ErrCodePluginBusy     = "REQUEST_1203"
	ErrCodeCircuitOpen    = "REQUEST_1204"
	ErrCodePluginPanic    = "REQUEST_1205"

	// Command faults (1300-1399)
	ErrCodeCommandConflict = "COMMAND_1301"
	ErrCodeInvalidCommand  = "COMMAND_1302"

	// Control channel faults (1400-1499)
	ErrCodeControlConnect  = "CONTROL_1401"
	ErrCodeControlAuth     = "CONTROL_1402"
	ErrCodeControlLost     = "CONTROL_1403"
	ErrCodeControlWrite    = "CONTROL_1404"
	ErrCodeControlProtocol = "CONTROL_1405"

	// Configuration errors (1500-1599)
	ErrCodeConfigNotFound   = "CONFIG_1501"
	ErrCodeConfigParse      = "CONFIG_1502"
	ErrCodeConfigValidation = "CONFIG_1503"
	ErrCodeConfigWatcher    = "CONFIG_1504"
	ErrCodeConfigFile       = "CONFIG_1505"

	// Cache persistence errors (1600-1699)
	ErrCodeCacheStore = "CACHE_1601"
)

// Discovery fault constructors

func NewArtifactUnreadableError(path string, cause error) *errors.Error {
	return wrapCause(cause, ErrCodeArtifactUnreadable, "Plugin artifact could not be loaded").
		WithUserMessage("A plugin file could not be opened and was skipped").
		WithContext("artifact", path).
		WithSeverity("warning")
}

func NewCandidateInvalidError(source, reason string) *errors.Error {
	return errors.New(ErrCodeCandidateInvalid, "Plugin candidate is invalid: "+reason).
		WithUserMessage("A plugin does not implement the plugin contract and was skipped").
		WithContext("source", source).
		WithSeverity("warning")
}

func NewDuplicateFactoryError(module string) *errors.Error {
	return errors.New(ErrCodeDuplicateFactory, "Plugin module already registered").
		WithUserMessage("Each compiled-in plugin module can only be registered once").
		WithContext("module", module).
		WithSeverity("error")
}

func NewUnknownModuleError(module string) *errors.Error {
	return errors.New(ErrCodeUnknownModule, "Unknown plugin module").
		WithUserMessage("The configuration names a plugin module that is not compiled in").
		WithContext("module", module).
		WithSeverity("warning")
}

func NewFactoryFailedError(module string, cause error) *errors.Error {
	return wrapCause(cause, ErrCodeFactoryFailed, "Plugin factory failed").
		WithUserMessage("A plugin could not be instantiated and was skipped").
		WithContext("module", module).
		WithSeverity("warning")
}

// Lifecycle fault constructors

func NewInvalidIdentifierError(identifier, source string) *errors.Error {
	return errors.New(ErrCodeInvalidIdentifier, "Invalid plugin identifier").
		WithUserMessage("Plugin identifiers must be non-empty and must not contain path separators").
		WithContext("identifier", identifier).
		WithContext("source", source).
		WithSeverity("error")
}

func NewDuplicateIdentifierError(identifier, source, existing string) *errors.Error {
	return errors.New(ErrCodeDuplicateIdentifier, "Plugin identifier already registered").
		WithUserMessage("Two plugins report the same identifier; the later one was rejected").
		WithContext("identifier", identifier).
		WithContext("source", source).
		WithContext("registered_by", existing).
		WithSeverity("error")
}

func NewDataDirectoryError(identifier, path string, cause error) *errors.Error {
	return wrapCause(cause, ErrCodeDataDirectory, "Plugin data directory could not be created").
		WithUserMessage("The plugin's data directory could not be created").
		WithContext("identifier", identifier).
		WithContext("path", path).
		WithSeverity("error")
}

func NewEnableFailedError(identifier string, cause error) *errors.Error {
	return wrapCause(cause, ErrCodeEnableFailed, "Plugin failed to enable").
		WithUserMessage("The plugin reported a failure while enabling and was not registered").
		WithContext("identifier", identifier).
		WithSeverity("error")
}

func NewDisableFailedError(identifier string, cause error) *errors.Error {
	return wrapCause(cause, ErrCodeDisableFailed, "Plugin failed to disable").
		WithUserMessage("The plugin reported a failure while disabling").
		WithContext("identifier", identifier).
		WithSeverity("warning")
}

// Request fault constructors

func NewRequestFailedError(identifier, token string) *errors.Error {
	return errors.New(ErrCodeRequestFailed, "Plugin returned no value").
		WithUserMessage("A placeholder could not be resolved").
		WithContext("identifier", identifier).
		WithContext("token", token).
		WithSeverity("warning")
}

func NewRequestTimeoutError(identifier string, timeout interface{}) *errors.Error {
	return errors.New(ErrCodeRequestTimeout, "Plugin request timed out").
		WithUserMessage("A plugin took too long to answer").
		WithContext("identifier", identifier).
		WithContext("timeout", timeout).
		WithSeverity("warning").
		AsRetryable()
}

func NewPluginBusyError(identifier string) *errors.Error {
	return errors.New(ErrCodePluginBusy, "Plugin is still serving a previous request").
		WithUserMessage("A plugin has not finished its previous request").
		WithContext("identifier", identifier).
		WithSeverity("warning").
		AsRetryable()
}

func NewCircuitOpenError(identifier string) *errors.Error {
	return errors.New(ErrCodeCircuitOpen, "Plugin circuit breaker is open").
		WithUserMessage("A plugin failed repeatedly and is temporarily skipped").
		WithContext("identifier", identifier).
		WithSeverity("warning").
		AsRetryable()
}

func NewPluginPanicError(identifier string, recovered interface{}) *errors.Error {
	return errors.New(ErrCodePluginPanic, fmt.Sprintf("Plugin panicked: %v", recovered)).
		WithUserMessage("A plugin crashed while handling a call").
		WithContext("identifier", identifier).
		WithSeverity("error")
}

// Command fault constructors

func NewCommandConflictError(name string) *errors.Error {
	return errors.New(ErrCodeCommandConflict, "Command already registered").
		WithUserMessage("A command with this name already exists; the first registration is kept").
		WithContext("command", name).
		WithSeverity("warning")
}

func NewInvalidCommandError(name string) *errors.Error {
	return errors.New(ErrCodeInvalidCommand, "Invalid command").
		WithUserMessage("Command names must be a single non-empty word and handlers must not be nil").
		WithContext("command", name).
		WithSeverity("error")
}

// Control channel fault constructors

func NewControlConnectError(address string, cause error) *errors.Error {
	return wrapCause(cause, ErrCodeControlConnect, "Control channel connection failed").
		WithUserMessage("Could not connect to the rendering target").
		WithContext("address", address).
		WithSeverity("critical")
}

func NewControlAuthError(message string, cause error) *errors.Error {
	return wrapCause(cause, ErrCodeControlAuth, "Control channel authentication failed: "+message).
		WithUserMessage("The rendering target rejected the credentials").
		WithSeverity("critical")
}

func NewControlLostError(cause error) *errors.Error {
	return wrapCause(cause, ErrCodeControlLost, "Control channel lost").
		WithUserMessage("The connection to the rendering target was lost").
		WithSeverity("critical")
}

func NewControlWriteError(source string, cause error) *errors.Error {
	return wrapCause(cause, ErrCodeControlWrite, "Control channel write failed").
		WithUserMessage("A source update could not be sent").
		WithContext("source", source).
		WithSeverity("error")
}

func NewControlProtocolError(message string, cause error) *errors.Error {
	return wrapCause(cause, ErrCodeControlProtocol, "Control channel protocol error: "+message).
		WithUserMessage("The rendering target sent an unexpected message").
		WithSeverity("critical")
}

// Configuration error constructors

func NewConfigNotFoundError(path string) *errors.Error {
	return errors.New(ErrCodeConfigNotFound, "Configuration file not found").
		WithUserMessage("The specified configuration file does not exist").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigParseError(path string, cause error) *errors.Error {
	return wrapCause(cause, ErrCodeConfigParse, "Configuration parse error").
		WithUserMessage("Failed to parse configuration file").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigValidationError(message string, cause error) *errors.Error {
	return wrapCause(cause, ErrCodeConfigValidation, "Configuration validation failed: "+message).
		WithUserMessage("Configuration contains invalid values").
		WithSeverity("error")
}

func NewConfigWatcherError(message string, cause error) *errors.Error {
	return wrapCause(cause, ErrCodeConfigWatcher, "Configuration watcher error: "+message).
		WithUserMessage("Configuration file watching failed").
		WithSeverity("warning")
}

func NewConfigFileError(path string, message string, cause error) *errors.Error {
	return wrapCause(cause, ErrCodeConfigFile, "Configuration file error: "+message).
		WithUserMessage("Configuration file could not be written").
		WithContext("config_path", path).
		WithSeverity("error")
}

// Cache error constructors

func NewCacheStoreError(message string, cause error) *errors.Error {
	return wrapCause(cause, ErrCodeCacheStore, "Cache store error: "+message).
		WithUserMessage("Last known placeholder values could not be persisted").
		WithSeverity("warning")
}

// ErrorCodeOf returns the structured error code carried by err, or an empty
// string when err is not a structured error.
func ErrorCodeOf(err error) string {
	var coded *errors.Error
	if stderrors.As(err, &coded) {
		return string(coded.ErrorCode())
	}
	return ""
}

// wrapCause wraps cause when there is one and creates a plain coded error otherwise.
func wrapCause(cause error, code errors.ErrorCode, message string) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, code, message)
	}
	return errors.New(code, message)
}
