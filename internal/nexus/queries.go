package nexus

// These query strings are dictated by the Nexus Mods v2 GraphQL schema:
// every field name here has to match the schema's own field name exactly,
// so they read close to Nexus's own API docs by necessity rather than by
// choice. The Go-side types they decode into (Collection, RevisionDetails,
// ModFileReference, etc. in types.go) are this package's actual surface.

// CollectionQuery fetches collection metadata including mod list.
const CollectionQuery = `
query Collection($slug: String!) {
  collection(slug: $slug) {
    id
    slug
    name
    summary
    description
    endorsements
    totalDownloads
    user {
      name
      avatar
      memberId
    }
    game {
      id
      domainName
      name
    }
    tileImage {
      url
    }
    latestPublishedRevision {
      revisionNumber
      modFiles {
        fileId
        optional
        file {
          fileId
          name
          size
          version
          mod {
            modId
            name
            summary
            version
            author
            pictureUrl
            modCategory {
              name
            }
          }
        }
      }
      externalResources {
        name
        resourceType
        resourceUrl
      }
    }
  }
}
`

// CollectionRevisionsQuery fetches revision history for a collection.
const CollectionRevisionsQuery = `
query CollectionRevisions($domainName: String, $slug: String!) {
  collection(domainName: $domainName, slug: $slug) {
    revisions {
      revisionNumber
      createdAt
      revisionStatus
      totalSize
    }
  }
}
`

// CollectionRevisionModsQuery fetches mod files for a specific revision.
const CollectionRevisionModsQuery = `
query CollectionRevisionMods($revision: Int, $slug: String!) {
  collectionRevision(revision: $revision, slug: $slug) {
    revisionNumber
    modFiles {
      fileId
      optional
      file {
        fileId
        name
        size
        version
        mod {
          modId
          name
          author
          summary
          pictureUrl
          game {
            domainName
          }
        }
      }
    }
  }
}
`
