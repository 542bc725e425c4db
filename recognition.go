package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// foodPrediction is one candidate label for a photo. Confidence is 0..1.
type foodPrediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// foodRecognizer classifies a meal photo into ranked predictions, highest
// confidence first.
type foodRecognizer interface {
	classify(ctx context.Context, image []byte) ([]foodPrediction, error)
}

// staticRecognizer returns a fixed answer for any image. Used in development
// and whenever no vision backend is configured.
type staticRecognizer struct{}

func (staticRecognizer) classify(_ context.Context, _ []byte) ([]foodPrediction, error) {
	return []foodPrediction{
		{Label: "Chicken Salad", Confidence: 0.85},
		{Label: "Margherita Pizza", Confidence: 0.65},
		{Label: "Protein Shake", Confidence: 0.5},
	}, nil
}

// detectLabelsAPI is the slice of the Rekognition client we call.
type detectLabelsAPI interface {
	DetectLabels(ctx context.Context, in *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// rekognitionRecognizer classifies photos with AWS Rekognition DetectLabels.
type rekognitionRecognizer struct {
	client        detectLabelsAPI
	maxLabels     int32
	minConfidence float32
}

func newRekognitionRecognizer(ctx context.Context, region string) (*rekognitionRecognizer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &rekognitionRecognizer{
		client:        rekognition.NewFromConfig(cfg),
		maxLabels:     5,
		minConfidence: 50,
	}, nil
}

func (r *rekognitionRecognizer) classify(ctx context.Context, image []byte) ([]foodPrediction, error) {
	out, err := r.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: image},
		MaxLabels:     aws.Int32(r.maxLabels),
		MinConfidence: aws.Float32(r.minConfidence),
	})
	if err != nil {
		return nil, fmt.Errorf("detect labels: %w", err)
	}

	preds := make([]foodPrediction, 0, len(out.Labels))
	for _, l := range out.Labels {
		if l.Name == nil {
			continue
		}
		conf := 0.0
		if l.Confidence != nil {
			conf = float64(*l.Confidence) / 100
		}
		preds = append(preds, foodPrediction{Label: *l.Name, Confidence: conf})
	}
	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Confidence > preds[j].Confidence })
	return preds, nil
}
