// Package evolution defines the change-event and evolution-analysis
// vocabulary. Change events reference stable entity IRIs only, so they
// survive nuclear rebuilds of version-scoped data.
package evolution

// Namespace is the base IRI prefix for evolution vocabulary terms.
const Namespace = "http://repolex.org/evolution/"

// EventNamespace is the base IRI prefix for change-event terms.
const EventNamespace = "http://repolex.org/abc/"

// Class IRIs.
const (
	// ClassChangeEvent is a change between two consecutive versions.
	ClassChangeEvent = EventNamespace + "Event"

	// ClassStatistics is a per-repository statistics node.
	ClassStatistics = Namespace + "Statistics"

	// ClassPattern is a recurring naming pattern across functions.
	ClassPattern = Namespace + "Pattern"

	// ClassAnalysis is a per-version analysis record.
	ClassAnalysis = Namespace + "AnalysisResult"
)

// Change-event property IRIs.
const (
	// PropEventKind is one of added, removed, signature_changed,
	// body_changed, moved.
	PropEventKind = EventNamespace + "eventKind"

	// PropAffects links an event to the stable entity it describes.
	PropAffects = EventNamespace + "affects"

	// PropFromVersion and PropToVersion bound the transition.
	PropFromVersion = EventNamespace + "fromVersion"
	PropToVersion   = EventNamespace + "toVersion"

	// PropIntroducedBy is the best-effort commit sha that introduced the
	// change: the most recent commit in the target version touching the
	// entity's defining file.
	PropIntroducedBy = EventNamespace + "introducedBy"
)

// Evolution analysis property IRIs.
const (
	// PropVersion tags an analysis record with its version.
	PropVersion = Namespace + "version"

	// PropPublicFunctionCount, PropPrivateFunctionCount and
	// PropTotalFunctionCount are repository-level statistics.
	PropPublicFunctionCount  = Namespace + "publicFunctionCount"
	PropPrivateFunctionCount = Namespace + "privateFunctionCount"
	PropTotalFunctionCount   = Namespace + "totalFunctionCount"

	// PropClassCount and PropModuleCount complete the statistics node.
	PropClassCount  = Namespace + "classCount"
	PropModuleCount = Namespace + "moduleCount"

	// PropPatternName and PropFrequency describe a naming pattern.
	PropPatternName = Namespace + "patternName"
	PropFrequency   = Namespace + "frequency"
)

// EventKind values.
const (
	KindAdded            = "added"
	KindRemoved          = "removed"
	KindSignatureChanged = "signature_changed"
	KindBodyChanged      = "body_changed"
	KindMoved            = "moved"
)
