package model

// ImportJob identifies one import lineage as seen by a single execution.
// Only Offset changes across executions; everything else is derived from the source.
type ImportJob struct {
	UserID string
	ListID string
	Source SourceLocator
	// ColumnMapping maps a source column name to a destination attribute name.
	ColumnMapping map[string]string
	// Offset is the number of valid recipients already persisted by earlier executions.
	Offset int
}

// NewImportJob reconstructs the job for a checkpoint. The column mapping is filled in after fetch.
func NewImportJob(cp Checkpoint) (ImportJob, error) {
	if err := cp.Validate(); err != nil {
		return ImportJob{}, err
	}
	userID, listID, err := cp.SourceLocator.Identity()
	if err != nil {
		return ImportJob{}, err
	}
	return ImportJob{
		UserID: userID,
		ListID: listID,
		Source: cp.SourceLocator,
		Offset: cp.Offset,
	}, nil
}

// Checkpoint returns the continuation payload for the job at the given offset.
func (j ImportJob) Checkpoint(offset int) Checkpoint {
	return Checkpoint{SourceLocator: j.Source, Offset: offset}
}
