// Package filesvocab defines the file-structure vocabulary for the
// per-version files graphs.
package filesvocab

// Namespace is the base IRI prefix for file vocabulary terms.
const Namespace = "http://repolex.org/files/"

// MetaNamespace is the base IRI prefix for processing-metadata terms.
const MetaNamespace = "http://repolex.org/meta/"

// Class IRIs.
const (
	// ClassSourceFile is a parsed source file in one version.
	ClassSourceFile = Namespace + "SourceFile"

	// ClassProcessingMetadata is the per-version ingestion record.
	ClassProcessingMetadata = MetaNamespace + "ProcessingMetadata"
)

// File property IRIs.
const (
	// PropPath is the repo-relative file path.
	PropPath = Namespace + "path"

	// PropLineCount is the file's line count.
	PropLineCount = Namespace + "lineCount"

	// PropContainsFunction links a file to an implementation it defines.
	PropContainsFunction = Namespace + "containsFunction"

	// PropContainsClass links a file to a class implementation it defines.
	PropContainsClass = Namespace + "containsClass"

	// PropGithubURL is a source link for the file at this version.
	PropGithubURL = Namespace + "githubUrl"
)

// Processing metadata property IRIs. Values are deterministic for a given
// checkout so repeated ingestion of the same tree is byte-identical.
const (
	PropMetaVersion         = MetaNamespace + "version"
	PropMetaFunctionsFound  = MetaNamespace + "functionsFound"
	PropMetaClassesFound    = MetaNamespace + "classesFound"
	PropMetaModulesFound    = MetaNamespace + "modulesFound"
	PropMetaFilesProcessed  = MetaNamespace + "filesProcessed"
	PropMetaFilesSkipped    = MetaNamespace + "filesSkipped"
	PropMetaToolVersion     = MetaNamespace + "toolVersion"
	PropMetaSchemaRevision  = MetaNamespace + "schemaRevision"
	PropMetaSourceTreeHash  = MetaNamespace + "sourceTreeHash"
	PropMetaPublicFunctions = MetaNamespace + "publicFunctions"
)
