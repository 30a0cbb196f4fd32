package ocr

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"claims-ingest/internal/blocks"
)

// medicalQueries is the fixed battery asked of every document.
var medicalQueries = []string{
	"What is the patient name?",
	"What is the date of service?",
	"Who is the provider?",
	"What is the facility name?",
	"What is the diagnosis?",
	"What medications are listed?",
	"What are the vital signs?",
	"What are the lab results?",
	"What procedures were performed?",
	"What is the chief complaint?",
	"What is the treatment plan?",
	"What are the follow-up instructions?",
}

// TextractAnalyzer runs asynchronous Textract document-analysis jobs
// with forms, tables, queries, and signature detection enabled.
type TextractAnalyzer struct {
	client   *textract.Client
	topicARN string
	roleARN  string
}

func NewTextractAnalyzer(client *textract.Client, topicARN, roleARN string) *TextractAnalyzer {
	return &TextractAnalyzer{client: client, topicARN: topicARN, roleARN: roleARN}
}

func (a *TextractAnalyzer) StartAnalysis(ctx context.Context, bucket, key string) (string, error) {
	queries := make([]types.Query, len(medicalQueries))
	for i, q := range medicalQueries {
		queries[i] = types.Query{Text: aws.String(q)}
	}

	input := &textract.StartDocumentAnalysisInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{
				Bucket: aws.String(bucket),
				Name:   aws.String(key),
			},
		},
		FeatureTypes: []types.FeatureType{
			types.FeatureTypeTables,
			types.FeatureTypeForms,
			types.FeatureTypeQueries,
			types.FeatureTypeSignatures,
		},
		QueriesConfig: &types.QueriesConfig{Queries: queries},
	}
	if a.topicARN != "" {
		input.NotificationChannel = &types.NotificationChannel{
			SNSTopicArn: aws.String(a.topicARN),
			RoleArn:     aws.String(a.roleARN),
		}
	}

	out, err := a.client.StartDocumentAnalysis(ctx, input)
	if err != nil {
		return "", fmt.Errorf("start document analysis: %w", err)
	}
	return aws.ToString(out.JobId), nil
}

// GetAnalysisResult pages through the full block list for a finished job.
func (a *TextractAnalyzer) GetAnalysisResult(ctx context.Context, jobID string) (Result, error) {
	var result Result
	var rawBlocks []types.Block
	var nextToken *string
	for {
		out, err := a.client.GetDocumentAnalysis(ctx, &textract.GetDocumentAnalysisInput{
			JobId:     aws.String(jobID),
			NextToken: nextToken,
		})
		if err != nil {
			return Result{}, fmt.Errorf("get document analysis %s: %w", jobID, err)
		}
		result.Status = string(out.JobStatus)
		result.StatusMessage = aws.ToString(out.StatusMessage)
		rawBlocks = append(rawBlocks, out.Blocks...)
		for _, b := range out.Blocks {
			result.Blocks = append(result.Blocks, convertBlock(b))
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	raw, err := json.Marshal(rawBlocks)
	if err != nil {
		return Result{}, fmt.Errorf("marshal raw blocks for %s: %w", jobID, err)
	}
	result.Raw = raw
	return result, nil
}

func convertBlock(b types.Block) blocks.Block {
	out := blocks.Block{
		ID:          aws.ToString(b.Id),
		BlockType:   string(b.BlockType),
		Text:        aws.ToString(b.Text),
		Page:        int(aws.ToInt32(b.Page)),
		RowIndex:    int(aws.ToInt32(b.RowIndex)),
		ColumnIndex: int(aws.ToInt32(b.ColumnIndex)),
	}
	if b.Confidence != nil {
		c := float64(*b.Confidence)
		out.Confidence = &c
	}
	for _, et := range b.EntityTypes {
		out.EntityTypes = append(out.EntityTypes, string(et))
	}
	for _, rel := range b.Relationships {
		out.Relationships = append(out.Relationships, blocks.Relationship{
			Type: string(rel.Type),
			IDs:  rel.Ids,
		})
	}
	if b.Geometry != nil && b.Geometry.BoundingBox != nil {
		out.Geometry = &blocks.Geometry{BoundingBox: blocks.BoundingBox{
			Width:  float64(b.Geometry.BoundingBox.Width),
			Height: float64(b.Geometry.BoundingBox.Height),
			Left:   float64(b.Geometry.BoundingBox.Left),
			Top:    float64(b.Geometry.BoundingBox.Top),
		}}
	}
	return out
}
