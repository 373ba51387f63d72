// Package file provides a pump sink that writes batches to a local file.
//
// Two formats are supported. FormatJSONL writes one JSON object per element,
// one per line, and suits tailing and line-oriented tools. FormatJSON writes
// each batch as an indented JSON array.
//
//	s, err := file.Open[Sample](file.Config{
//	    Directory:  "/var/lib/ringstream",
//	    FilePrefix: "samples",
//	    Format:     file.FormatJSONL,
//	    Append:     true,
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
// Every Write flushes to the operating system before returning, so a batch the
// pump counts as delivered is in the file. Encoding failures are classified
// Invalid and the pump drops the batch; write failures are Transient and are
// retried. Writing after Close is Fatal.
package file
