package woc

// Namespace is the base IRI prefix for Web of Code vocabulary terms.
const Namespace = "http://rdf.webofcode.org/woc/"

// RDF and XSD IRIs used alongside the code vocabulary.
const (
	// RdfType is the rdf:type property.
	RdfType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

	// RdfsComment is the rdfs:comment property, used for docstrings.
	RdfsComment = "http://www.w3.org/2000/01/rdf-schema#comment"

	// OwlClass marks an ontology class.
	OwlClass = "http://www.w3.org/2002/07/owl#Class"

	// OwlObjectProperty marks an object property.
	OwlObjectProperty = "http://www.w3.org/2002/07/owl#ObjectProperty"

	// OwlDatatypeProperty marks a datatype property.
	OwlDatatypeProperty = "http://www.w3.org/2002/07/owl#DatatypeProperty"

	// XsdInteger is the xsd:integer datatype IRI.
	XsdInteger = "http://www.w3.org/2001/XMLSchema#integer"

	// XsdBoolean is the xsd:boolean datatype IRI.
	XsdBoolean = "http://www.w3.org/2001/XMLSchema#boolean"

	// XsdDateTime is the xsd:dateTime datatype IRI.
	XsdDateTime = "http://www.w3.org/2001/XMLSchema#dateTime"
)

// Class IRIs for code entities.
const (
	// ClassFunction is a stable function identity.
	ClassFunction = Namespace + "Function"

	// ClassClass is a stable class identity.
	ClassClass = Namespace + "Class"

	// ClassMethodImplementation is a version-scoped function implementation.
	ClassMethodImplementation = Namespace + "MethodImplementation"

	// ClassClassImplementation is a version-scoped class implementation.
	ClassClassImplementation = Namespace + "ClassImplementation"

	// ClassModule is a version-scoped module record.
	ClassModule = Namespace + "Module"

	// ClassParameter is a declared parameter of an implementation.
	ClassParameter = Namespace + "Parameter"
)

// Object property IRIs.
const (
	// PropImplementsFunction links an implementation to its stable function.
	PropImplementsFunction = Namespace + "implementsFunction"

	// PropImplementsClass links a class implementation to its stable class.
	PropImplementsClass = Namespace + "implementsClass"

	// PropHasParameter links an implementation to a parameter node.
	PropHasParameter = Namespace + "hasParameter"

	// PropHasMethod links a stable class to a stable function by URI.
	PropHasMethod = Namespace + "hasMethod"

	// PropCalls links a stable function to a stable function it invokes.
	// Emitted only when the callee resolves inside the same repository.
	PropCalls = Namespace + "calls"
)

// Data property IRIs.
const (
	// PropCanonicalName is the qualified name of a stable identity.
	PropCanonicalName = Namespace + "canonicalName"

	// PropModule is the dotted module path an entity belongs to.
	PropModule = Namespace + "module"

	// PropExistsInVersion records one version membership of a stable
	// identity. The full membership set is the set of these triples.
	PropExistsInVersion = Namespace + "existsInVersion"

	// PropFirstSeenVersion is the version a stable identity first appeared in.
	PropFirstSeenVersion = Namespace + "firstSeenVersion"

	// PropBelongsToVersion partitions the implementations graph by version.
	PropBelongsToVersion = Namespace + "belongsToVersion"

	// PropHasSignature is the full signature text of an implementation.
	PropHasSignature = Namespace + "hasSignature"

	// PropDefinedInFile is the repo-relative defining file path.
	PropDefinedInFile = Namespace + "definedInFile"

	// PropStartLine and PropEndLine bound the definition in its file.
	PropStartLine = Namespace + "startLine"
	PropEndLine   = Namespace + "endLine"

	// PropBodyLines is the lexical body size in lines.
	PropBodyLines = Namespace + "bodyLines"

	// PropBodyHash is a content hash of the body, for change detection.
	PropBodyHash = Namespace + "bodyHash"

	// PropHasReturnType is the declared return type text.
	PropHasReturnType = Namespace + "hasReturnType"

	// PropHasVisibility is public or private by naming convention.
	PropHasVisibility = Namespace + "hasVisibility"

	// PropHasName, PropHasType, PropHasDefault and PropIsRequired describe
	// a parameter node.
	PropHasName    = Namespace + "hasName"
	PropHasType    = Namespace + "hasType"
	PropHasDefault = Namespace + "hasDefault"
	PropIsRequired = Namespace + "isRequired"

	// PropExtends is a parent class name (text) on a class implementation.
	PropExtends = Namespace + "extends"

	// PropMethodCount is the method count of a class implementation.
	PropMethodCount = Namespace + "methodCount"

	// PropImplementationCategory tags an implementation (function, method,
	// async_function, class, module).
	PropImplementationCategory = Namespace + "implementationCategory"

	// PropRefactorScore is the size-derived refactor tag.
	PropRefactorScore = Namespace + "refactorScore"

	// PropGithubLink is a source link minted for the implementation.
	PropGithubLink = Namespace + "githubLink"
)
